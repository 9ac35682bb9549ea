package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOperationalNote(t *testing.T) {
	r := Default()

	tests := []struct {
		text string
		body string
		ok   bool
		name string
	}{
		{name: "nota_colon", text: "nota: troquei a fralda as 14h", body: "troquei a fralda as 14h", ok: true},
		{name: "obs_space", text: "obs paciente recusou almoco", body: "paciente recusou almoco", ok: true},
		{name: "registro_dash", text: "registro - familia visitou", body: "familia visitou", ok: true},
		{name: "uppercase_prefix", text: "NOTA: tudo tranquilo", body: "tudo tranquilo", ok: true},
		{name: "prefix_only", text: "nota:", ok: false},
		{name: "prefix_inside_word", text: "notavel melhora", ok: false},
		{name: "plain_message", text: "bom dia", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ok := r.IsOperationalNote(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestAffirmativeNegative(t *testing.T) {
	r := Default()

	assert.True(t, r.IsAffirmative("sim"))
	assert.True(t, r.IsAffirmative("Sim!"))
	assert.True(t, r.IsAffirmative("  CONFIRMO  "))
	assert.True(t, r.IsAffirmative("ok"))
	assert.False(t, r.IsAffirmative("sim, mas depois"))
	assert.False(t, r.IsAffirmative("acho que sim talvez"))

	assert.True(t, r.IsNegative("nao"))
	assert.True(t, r.IsNegative("Não"))
	assert.True(t, r.IsNegative("cancelar"))
	assert.False(t, r.IsNegative("nao sei ainda"))
}

func TestHasVitalTokens(t *testing.T) {
	r := Default()

	assert.True(t, r.HasVitalTokens("PA 130x85"))
	assert.True(t, r.HasVitalTokens("fc: 82 e sat 97%"))
	assert.True(t, r.HasVitalTokens("Temp 36,8"))
	assert.False(t, r.HasVitalTokens("paciente almocou bem"))
	assert.False(t, r.HasVitalTokens("sim"))
}

func TestMentionsFinalization(t *testing.T) {
	r := Default()

	assert.True(t, r.MentionsFinalization("quero finalizar o plantao"))
	assert.True(t, r.MentionsFinalization("pode encerrar"))
	assert.False(t, r.MentionsFinalization("PA 120x80"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, r.IsAffirmative("sim"))
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "affirmative:\n  - beleza\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Load(path)
	require.NoError(t, err)

	// Overridden section.
	assert.True(t, r.IsAffirmative("beleza"))
	assert.False(t, r.IsAffirmative("sim"))
	// Untouched sections fall back to defaults.
	assert.True(t, r.IsNegative("nao"))
	_, ok := r.IsOperationalNote("nota: teste")
	assert.True(t, ok)
}

func TestLoadBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "vital_patterns:\n  - '['\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestReloadSwapsInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("affirmative:\n  - beleza\n"), 0o644))

	r := Default()
	assert.True(t, r.IsAffirmative("sim"))
	assert.False(t, r.IsAffirmative("beleza"))

	require.NoError(t, r.Reload(path))
	assert.True(t, r.IsAffirmative("beleza"))
	assert.False(t, r.IsAffirmative("sim"))
	// Sections the file omits fall back to defaults after reload too.
	assert.True(t, r.IsNegative("nao"))
}

func TestReloadKeepsRulesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vital_patterns:\n  - '['\n"), 0o644))

	r := Default()
	assert.Error(t, r.Reload(path))
	assert.True(t, r.IsAffirmative("sim"), "failed reload must leave the rules untouched")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "nao", Normalize("Não"))
	assert.Equal(t, "coracao", Normalize("CORAÇÃO"))
	assert.Equal(t, "sim", Normalize("  sim "))
}
