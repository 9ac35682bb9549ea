// Package rules manages the YAML-based phrase rules used by the gate router
// and the confirmation resolver: operational-note prefixes, affirmative and
// negative vocabularies, and the vital-sign token patterns that mark a
// clinical resumption. Compiled-in defaults cover deployments without a
// rules file.
package rules

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML structure.
type Config struct {
	OperationalPrefixes []string `yaml:"operational_prefixes"`
	Affirmative         []string `yaml:"affirmative"`
	Negative            []string `yaml:"negative"`
	VitalPatterns       []string `yaml:"vital_patterns"`
	FinalizationTerms   []string `yaml:"finalization_terms"`
}

// Rules holds the compiled rule set. The mutex exists for hot reload: the
// file watcher may swap the tables while the worker is matching.
type Rules struct {
	mu                  sync.RWMutex
	operationalPrefixes []string
	affirmative         map[string]bool
	negative            map[string]bool
	vitalPatterns       []*regexp.Regexp
	finalizationTerms   []string
}

// Default returns the compiled-in rule set.
func Default() *Rules {
	r, _ := compile(Config{
		OperationalPrefixes: []string{"nota", "obs", "registro", "recado"},
		Affirmative:         []string{"sim", "s", "confirmo", "confirmar", "ok", "pode", "claro", "isso"},
		Negative:            []string{"nao", "n", "cancela", "cancelar", "negativo"},
		VitalPatterns: []string{
			`(?i)\bpa\s*:?\s*\d{2,3}\s*[x/]\s*\d{2,3}\b`,
			`(?i)\bfc\s*:?\s*\d{2,3}\b`,
			`(?i)\bfr\s*:?\s*\d{1,2}\b`,
			`(?i)\bsat\s*:?\s*\d{2,3}\s*%?`,
			`(?i)\btemp\s*:?\s*\d{2}([.,]\d)?\b`,
		},
		FinalizationTerms: []string{"finalizar", "encerrar", "fechar plantao", "fim do plantao"},
	})
	return r
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Sparse files override only what they set.
	def := Default()
	r, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.OperationalPrefixes) == 0 {
		r.operationalPrefixes = def.operationalPrefixes
	}
	if len(cfg.Affirmative) == 0 {
		r.affirmative = def.affirmative
	}
	if len(cfg.Negative) == 0 {
		r.negative = def.negative
	}
	if len(cfg.VitalPatterns) == 0 {
		r.vitalPatterns = def.vitalPatterns
	}
	if len(cfg.FinalizationTerms) == 0 {
		r.finalizationTerms = def.finalizationTerms
	}
	return r, nil
}

// Reload re-reads the file at path and swaps the rule tables in place, so
// holders of the pointer pick up the new rules on their next match. On error
// the current rules stay untouched.
func (r *Rules) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.operationalPrefixes = next.operationalPrefixes
	r.affirmative = next.affirmative
	r.negative = next.negative
	r.vitalPatterns = next.vitalPatterns
	r.finalizationTerms = next.finalizationTerms
	return nil
}

func compile(cfg Config) (*Rules, error) {
	r := &Rules{
		operationalPrefixes: cfg.OperationalPrefixes,
		affirmative:         make(map[string]bool, len(cfg.Affirmative)),
		negative:            make(map[string]bool, len(cfg.Negative)),
		finalizationTerms:   cfg.FinalizationTerms,
	}
	for _, w := range cfg.Affirmative {
		r.affirmative[Normalize(w)] = true
	}
	for _, w := range cfg.Negative {
		r.negative[Normalize(w)] = true
	}
	for _, p := range cfg.VitalPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		r.vitalPatterns = append(r.vitalPatterns, re)
	}
	return r, nil
}

// Normalize lowercases and strips the Portuguese accents that matter for
// phrase matching, so "Não" and "nao" compare equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "ô", "o", "õ", "o",
		"ú", "u", "ü", "u",
		"ç", "c",
	)
	return replacer.Replace(s)
}

// IsOperationalNote reports whether the message is a standalone operational
// note: a configured prefix followed by a separator and free text.
func (r *Rules) IsOperationalNote(text string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	norm := Normalize(text)
	for _, prefix := range r.operationalPrefixes {
		if !strings.HasPrefix(norm, prefix) {
			continue
		}
		rest := norm[len(prefix):]
		if len(rest) == 0 {
			continue
		}
		if rest[0] != ':' && rest[0] != ' ' && rest[0] != '-' {
			continue
		}
		body := strings.TrimLeft(text[len(prefix):], ":- \t")
		if strings.TrimSpace(body) == "" {
			continue
		}
		return strings.TrimSpace(body), true
	}
	return "", false
}

// IsAffirmative reports whether the message resolves a confirmation
// positively. Only short, unambiguous replies count.
func (r *Rules) IsAffirmative(text string) bool {
	r.mu.RLock()
	set := r.affirmative
	r.mu.RUnlock()
	return matchWord(text, set)
}

// IsNegative reports whether the message cancels a confirmation.
func (r *Rules) IsNegative(text string) bool {
	r.mu.RLock()
	set := r.negative
	r.mu.RUnlock()
	return matchWord(text, set)
}

func matchWord(text string, set map[string]bool) bool {
	norm := Normalize(text)
	norm = strings.TrimRight(norm, ".!?")
	if set[norm] {
		return true
	}
	fields := strings.Fields(norm)
	return len(fields) == 1 && set[fields[0]]
}

// HasVitalTokens reports whether the message carries at least one vital-sign
// reading, the narrow signal used by the resumption gate.
func (r *Rules) HasVitalTokens(text string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, re := range r.vitalPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// MentionsFinalization reports whether the message uses finalization
// language.
func (r *Rules) MentionsFinalization(text string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	norm := Normalize(text)
	for _, term := range r.finalizationTerms {
		if strings.Contains(norm, term) {
			return true
		}
	}
	return false
}
