// Package flows contains one handler per business flow. Each handler reads
// and mutates session state and either completes immediately, stages a
// confirmation, or reports what is missing. Persistence stays with the
// orchestrator: handlers never call Save.
package flows

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/internal/backend"
	"github.com/plenacare/plantao/internal/clinical"
	"github.com/plenacare/plantao/internal/pending"
	"github.com/plenacare/plantao/pkg/models"
)

// Handlers bundles the flow handlers and their collaborators.
type Handlers struct {
	ops   backend.Operations
	pend  *pending.Manager
	audit pending.Recorder
}

// NewHandlers creates the handler set. audit may be nil.
func NewHandlers(ops backend.Operations, pend *pending.Manager, audit pending.Recorder) *Handlers {
	return &Handlers{ops: ops, pend: pend, audit: audit}
}

// Operational persists a standalone note immediately and delivers it outward
// with no prepare step: a wrong operational note is cheap to correct, so it
// skips confirmation entirely.
func (h *Handlers) Operational(ctx context.Context, state *models.SessionState, noteBody string) *models.FlowOutcome {
	if !state.HasSchedule() {
		return &models.FlowOutcome{Flow: models.FlowOperational, Event: models.EventNeedsBootstrap}
	}

	payload, err := models.BuildClinicalPayload(state.Sessao, &models.ClinicalState{Nota: noteBody})
	if err != nil {
		return &models.FlowOutcome{Flow: models.FlowOperational, Event: models.EventOperationFailed, Detail: err.Error()}
	}

	if err := h.ops.SaveClinicalData(ctx, payload); err != nil {
		log.Warn().Err(err).Str("sessionId", state.SessionID).Msg("Operational note delivery failed")
		return &models.FlowOutcome{Flow: models.FlowOperational, Event: models.EventOperationFailed, Detail: err.Error()}
	}

	state.AppendFlow(models.FlowOperational)
	if h.audit != nil {
		if err := h.audit.RecordCommit(ctx, state.SessionID, models.FlowOperational, payload); err != nil {
			log.Warn().Err(err).Str("sessionId", state.SessionID).Msg("Audit record failed")
		}
	}
	return &models.FlowOutcome{Flow: models.FlowOperational, Event: models.EventNoteSaved, Payload: payload}
}

// Bootstrap performs the schedule lookup for a cold session. On failure no
// partial context is kept. When the shift has not started yet, an attendance
// confirmation is staged right away.
func (h *Handlers) Bootstrap(ctx context.Context, state *models.SessionState) *models.FlowOutcome {
	res, err := h.ops.ScheduleLookup(ctx, state.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", state.SessionID).Msg("Schedule lookup failed")
		return &models.FlowOutcome{Flow: models.FlowSchedule, Event: models.EventOperationFailed, Detail: err.Error()}
	}
	if res.Schedule.ScheduleID == "" {
		return &models.FlowOutcome{Flow: models.FlowSchedule, Event: models.EventNeedsBootstrap}
	}

	sched := res.Schedule
	state.Sessao = &sched
	state.FinishReminderSent = res.FinishReminderSent
	state.AppendFlow(models.FlowSchedule)

	if !res.ScheduleStarted {
		return h.prepareAttendance(state, models.ResponseConfirmado)
	}
	return &models.FlowOutcome{Flow: models.FlowSchedule, Event: models.EventBootstrapped}
}

// Schedule handles attendance intent on an oriented session: it stages a
// confirmado/cancelado payload for confirmation.
func (h *Handlers) Schedule(ctx context.Context, state *models.SessionState, ext *models.Extraction) *models.FlowOutcome {
	if !state.HasSchedule() {
		return h.Bootstrap(ctx, state)
	}

	response := models.ResponseConfirmado
	if ext != nil && ext.RespostaValor == models.ResponseCancelado {
		response = models.ResponseCancelado
	}
	return h.prepareAttendance(state, response)
}

func (h *Handlers) prepareAttendance(state *models.SessionState, response string) *models.FlowOutcome {
	payload, err := models.BuildAttendancePayload(state.Sessao, state.SessionID, response)
	if err != nil {
		return &models.FlowOutcome{Flow: models.FlowSchedule, Event: models.EventNeedsBootstrap, Detail: err.Error()}
	}
	return h.pend.Prepare(state, models.FlowSchedule, payload)
}

// Clinical folds extracted fragments into the accumulator and stages a save
// once the completeness rules pass. Incomplete first measurements keep their
// partial progress and report what is still required.
func (h *Handlers) Clinical(ctx context.Context, state *models.SessionState, vitais map[string]string, nota string) *models.FlowOutcome {
	if !state.HasSchedule() {
		return &models.FlowOutcome{Flow: models.FlowClinical, Event: models.EventNeedsBootstrap}
	}

	res := clinical.Merge(&state.Clinico, vitais, nota)
	if !res.Ready {
		missing := res.Missing
		if len(missing) == 0 {
			missing = state.Clinico.MissingVitals()
		}
		return &models.FlowOutcome{Flow: models.FlowClinical, Event: models.EventMissingFields, Missing: missing}
	}

	payload, err := models.BuildClinicalPayload(state.Sessao, &state.Clinico)
	if err != nil {
		return &models.FlowOutcome{Flow: models.FlowClinical, Event: models.EventOperationFailed, Detail: err.Error()}
	}
	return h.pend.Prepare(state, models.FlowClinical, payload)
}

// Finalization stages the shift summary, but only while the finish reminder
// is active; otherwise the message is redirected to help and no finalization
// payload is ever staged or mentioned.
func (h *Handlers) Finalization(ctx context.Context, state *models.SessionState, ext *models.Extraction) *models.FlowOutcome {
	if !state.FinishReminderSent {
		log.Debug().Str("sessionId", state.SessionID).Msg("Finalization requested before reminder, redirecting to help")
		return h.Auxiliary(state)
	}
	if !state.HasSchedule() {
		return &models.FlowOutcome{Flow: models.FlowFinalization, Event: models.EventNeedsBootstrap}
	}

	var resumo map[string]string
	if ext != nil {
		resumo = ext.Resumo
	}
	payload, err := models.BuildFinalizationPayload(state.Sessao, resumo)
	if err != nil {
		return &models.FlowOutcome{Flow: models.FlowFinalization, Event: models.EventOperationFailed, Detail: err.Error()}
	}
	return h.pend.Prepare(state, models.FlowFinalization, payload)
}

// Auxiliary is the help flow and the default on total ambiguity.
func (h *Handlers) Auxiliary(state *models.SessionState) *models.FlowOutcome {
	return &models.FlowOutcome{Flow: models.FlowAuxiliary, Event: models.EventHelp}
}
