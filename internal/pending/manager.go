// Package pending implements the two-phase commit over a single outstanding
// confirmation per session: prepare stages a payload, a later sim/nao message
// resolves it.
package pending

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/internal/backend"
	"github.com/plenacare/plantao/internal/clinical"
	"github.com/plenacare/plantao/internal/rules"
	"github.com/plenacare/plantao/pkg/models"
)

// Recorder receives committed operations for the audit ledger. Nil-safe: the
// core runs without one.
type Recorder interface {
	RecordCommit(ctx context.Context, sessionID string, flow models.Flow, payload map[string]string) error
}

// Manager owns the prepare/resolve protocol.
type Manager struct {
	ops   backend.Operations
	rules *rules.Rules
	audit Recorder
}

// NewManager creates a Manager. audit may be nil.
func NewManager(ops backend.Operations, r *rules.Rules, audit Recorder) *Manager {
	return &Manager{ops: ops, rules: r, audit: audit}
}

// Prepare stages a payload for later confirmation, unconditionally replacing
// any prior pending. No external operation runs here; the caller persists the
// state and the staged payload is echoed for response rendering.
func (m *Manager) Prepare(state *models.SessionState, flow models.Flow, payload map[string]string) *models.FlowOutcome {
	if state.Pendente != nil {
		log.Debug().
			Str("sessionId", state.SessionID).
			Str("replaced", string(state.Pendente.Fluxo)).
			Str("with", string(flow)).
			Msg("Replacing outstanding confirmation")
	}
	state.SetPending(flow, payload)

	return &models.FlowOutcome{
		Flow:    flow,
		Event:   models.EventConfirmationRequested,
		Payload: state.Pendente.Payload,
	}
}

// Resolve interprets the message against the outstanding confirmation.
// handled is false when the message is neither affirmative nor negative; the
// pending then stays untouched and the caller may still fold incidental data
// into the session (the pending is not an exclusive lock).
func (m *Manager) Resolve(ctx context.Context, state *models.SessionState, text string) (outcome *models.FlowOutcome, handled bool) {
	p := state.Pendente
	if p == nil {
		return nil, false
	}

	switch {
	case m.rules.IsAffirmative(text):
		return m.commit(ctx, state), true

	case m.rules.IsNegative(text):
		flow := p.Fluxo
		state.ClearPending()
		log.Info().Str("sessionId", state.SessionID).Str("flow", string(flow)).Msg("Confirmation cancelled")
		return &models.FlowOutcome{Flow: flow, Event: models.EventCancelled}, true

	default:
		return nil, false
	}
}

// commit executes the external operation with the payload captured at prepare
// time, never re-derived from the live message or session. On failure the
// pending is retained unchanged so the caregiver can retry with another sim.
func (m *Manager) commit(ctx context.Context, state *models.SessionState) *models.FlowOutcome {
	p := state.Pendente

	var err error
	switch p.Fluxo {
	case models.FlowSchedule:
		err = m.ops.ConfirmAttendance(ctx, p.Payload)
	case models.FlowClinical:
		err = m.ops.SaveClinicalData(ctx, p.Payload)
	case models.FlowFinalization:
		err = m.ops.FinalizeShift(ctx, p.Payload)
	default:
		log.Error().Str("sessionId", state.SessionID).Str("flow", string(p.Fluxo)).Msg("Pending with unknown flow, discarding")
		state.ClearPending()
		return &models.FlowOutcome{Flow: p.Fluxo, Event: models.EventCancelled}
	}

	if err != nil {
		log.Warn().Err(err).
			Str("sessionId", state.SessionID).
			Str("flow", string(p.Fluxo)).
			Msg("Commit failed, pending retained for retry")
		return &models.FlowOutcome{Flow: p.Fluxo, Event: models.EventOperationFailed, Detail: err.Error()}
	}

	flow := p.Fluxo
	payload := p.Payload
	state.ClearPending()
	state.AppendFlow(flow)
	m.postCommit(state, flow)

	if m.audit != nil {
		if auditErr := m.audit.RecordCommit(ctx, state.SessionID, flow, payload); auditErr != nil {
			log.Warn().Err(auditErr).Str("sessionId", state.SessionID).Msg("Audit record failed")
		}
	}

	log.Info().Str("sessionId", state.SessionID).Str("flow", string(flow)).Msg("Confirmation committed")
	return &models.FlowOutcome{Flow: flow, Event: models.EventCommitted, Payload: payload}
}

// postCommit applies flow-specific state changes after a successful commit.
// Sessions are logically reset by external shift rollover, so finalization
// leaves the reminder flag alone.
func (m *Manager) postCommit(state *models.SessionState, flow models.Flow) {
	if flow == models.FlowClinical {
		state.Clinico.AfericaoCompleta = true
		clinical.ResetForNextMeasurement(&state.Clinico)
	}
}
