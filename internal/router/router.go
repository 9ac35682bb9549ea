// Package router selects exactly one flow for each inbound message by
// evaluating deterministic gates in strict priority order. Selection is a
// pure function of (message, session state); it never mutates state and
// never calls the fiscal classifier itself.
package router

import (
	"github.com/plenacare/plantao/internal/rules"
	"github.com/plenacare/plantao/pkg/models"
)

// Gate numbers, in evaluation order. Later gates never override earlier ones.
const (
	GateOperationalNote = 0
	GatePending         = 1
	GateResumption      = 2
	GateBootstrap       = 3
	GateFinalization    = 4
	GateDelegate        = 5
)

// Selection is the routing decision for one message.
type Selection struct {
	Gate int
	Flow models.Flow
	// NoteBody carries the note text when the operational gate fired.
	NoteBody string
	// ResolvePending marks the message as a yes/no/other resolution of the
	// outstanding confirmation.
	ResolvePending bool
	// MergeMode marks a clinical continuation (gate 2): fold new fragments
	// into the accumulator rather than classifying afresh.
	MergeMode bool
	// Delegate marks that no deterministic gate matched and the fiscal
	// classifier decides the flow.
	Delegate bool
}

// Select evaluates the gates against one message. The first matching gate
// wins; gate 5 always matches.
func Select(text string, state *models.SessionState, r *rules.Rules) Selection {
	// Gate 0: standalone operational note. Highest priority, bypasses any
	// outstanding confirmation entirely.
	if body, ok := r.IsOperationalNote(text); ok {
		return Selection{Gate: GateOperationalNote, Flow: models.FlowOperational, NoteBody: body}
	}

	// Gate 1: an outstanding confirmation interprets the message as its
	// resolution, not as a fresh flow.
	if state.Pendente != nil {
		return Selection{Gate: GatePending, Flow: state.Pendente.Fluxo, ResolvePending: true}
	}

	// Gate 2: narrow resumption check. Only a partial-measurement
	// continuation counts: outstanding faltantes plus vital tokens in the
	// message. Deliberately not a general intent classifier.
	if len(state.Clinico.Faltantes) > 0 && r.HasVitalTokens(text) {
		return Selection{Gate: GateResumption, Flow: models.FlowClinical, MergeMode: true}
	}

	// Gate 3: cold-start sessions bootstrap through the schedule lookup
	// before anything else can run.
	if !state.HasSchedule() {
		return Selection{Gate: GateBootstrap, Flow: models.FlowSchedule}
	}

	// Gate 4: with the finish reminder active, finalization language beats
	// generic classification.
	if state.FinishReminderSent && r.MentionsFinalization(text) {
		return Selection{Gate: GateFinalization, Flow: models.FlowFinalization}
	}

	// Gate 5: delegate to the fiscal classifier. Never fails to match.
	return Selection{Gate: GateDelegate, Delegate: true}
}
