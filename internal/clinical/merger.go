// Package clinical folds extracted vital-sign/note fragments into the
// session's clinical accumulator and decides when a submission may proceed
// to a confirmation prepare.
package clinical

import (
	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/pkg/models"
)

// MissingNota is the marker used in faltantes when the mandatory first
// measurement still lacks a clinical note.
const MissingNota = "Nota"

// Result describes the outcome of one merge.
type Result struct {
	// Ready reports the accumulator may proceed to a prepare step.
	Ready bool
	// NoteOnly marks a standalone note submission (only possible after the
	// first full measurement).
	NoteOnly bool
	// Missing lists what the caregiver still owes, in reporting order.
	Missing []string
}

var knownVitals = func() map[string]bool {
	set := make(map[string]bool, len(models.RequiredVitals))
	for _, name := range models.RequiredVitals {
		set[name] = true
	}
	return set
}()

// Merge folds a fragment into the accumulator. Fields present in the fragment
// overwrite; absent fields are preserved. Partial progress is always kept:
// the caller persists the state regardless of readiness.
func Merge(c *models.ClinicalState, vitais map[string]string, nota string) Result {
	if c.Vitais == nil {
		c.Vitais = map[string]string{}
	}

	for name, value := range vitais {
		if !knownVitals[name] {
			log.Warn().Str("vital", name).Msg("Dropping vital outside vocabulary")
			continue
		}
		if value == "" {
			// Merge only adds or replaces with non-null.
			continue
		}
		c.Vitais[name] = value
	}
	if nota != "" {
		c.Nota = nota
	}

	if !c.AfericaoCompleta {
		return firstMeasurement(c)
	}
	return subsequentMeasurement(c, vitais, nota)
}

// firstMeasurement enforces the mandatory-first-measurement rule: all vitals,
// the respiratory condition and a non-empty note before anything is staged.
func firstMeasurement(c *models.ClinicalState) Result {
	missing := c.MissingVitals()
	if c.Nota == "" {
		missing = append(missing, MissingNota)
	}
	c.Faltantes = missing

	if len(missing) > 0 {
		return Result{Missing: missing}
	}
	return Result{Ready: true}
}

// subsequentMeasurement applies the flexible post-first rules: a note-only
// submission stands alone; a vitals submission must again be complete, with
// the note optional.
func subsequentMeasurement(c *models.ClinicalState, vitais map[string]string, nota string) Result {
	if len(vitais) == 0 {
		if nota == "" {
			return Result{}
		}
		c.Faltantes = nil
		return Result{Ready: true, NoteOnly: true}
	}

	missing := c.MissingVitals()
	c.Faltantes = missing
	if len(missing) > 0 {
		return Result{Missing: missing}
	}
	if c.Nota == "" {
		c.Nota = models.NoChangesNote
	}
	return Result{Ready: true}
}

// ResetForNextMeasurement clears the accumulator after a committed save so a
// later submission starts fresh, keeping the monotone completion flag.
func ResetForNextMeasurement(c *models.ClinicalState) {
	c.Vitais = map[string]string{}
	c.Nota = ""
	c.Faltantes = nil
}
