// Package worker hosts the orchestration pipeline and its HTTP surface: one
// inbound message in, one load→route→execute→persist cycle, one reply out.
package worker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/internal/clinical"
	"github.com/plenacare/plantao/internal/fiscal"
	"github.com/plenacare/plantao/internal/flows"
	"github.com/plenacare/plantao/internal/pending"
	"github.com/plenacare/plantao/internal/router"
	"github.com/plenacare/plantao/internal/rules"
	"github.com/plenacare/plantao/internal/store"
	"github.com/plenacare/plantao/pkg/models"
)

// Orchestrator wires the gate router, the flow handlers, the confirmation
// manager and the store into the per-message pipeline.
type Orchestrator struct {
	store      store.SessionStore
	locker     *store.SessionLocker
	rules      *rules.Rules
	handlers   *flows.Handlers
	pend       *pending.Manager
	classifier fiscal.Classifier
	responder  fiscal.Responder
	fallback   *fiscal.TemplateResponder
	metrics    *Metrics
}

// NewOrchestrator builds the pipeline. responder may be nil, in which case
// the deterministic template responder renders every reply.
func NewOrchestrator(
	sessions store.SessionStore,
	r *rules.Rules,
	handlers *flows.Handlers,
	pend *pending.Manager,
	classifier fiscal.Classifier,
	responder fiscal.Responder,
	metrics *Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:      sessions,
		locker:     store.NewSessionLocker(),
		rules:      r,
		handlers:   handlers,
		pend:       pend,
		classifier: classifier,
		responder:  responder,
		fallback:   fiscal.NewTemplateResponder(),
		metrics:    metrics,
	}
}

// Process runs one message through the full cycle. Messages for the same
// session are serialized; the cycle either persists whole or not at all.
//
// A non-nil error marks a failure the caller should log and alert on (state
// decode, store outage); when possible a safe reply is still returned for
// the end user alongside it.
func (o *Orchestrator) Process(ctx context.Context, msg models.InboundMessage) (*models.Reply, error) {
	release, err := o.locker.Acquire(ctx, msg.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	defer release()

	state, err := o.store.Load(ctx, msg.PhoneNumber)
	if err != nil {
		// Decode failures are fatal for this request: silently
		// reinitializing would discard a caregiver's in-progress shift.
		log.Error().Err(err).Str("sessionId", msg.PhoneNumber).Msg("Session state unusable")
		safe := o.render(ctx, models.NewSessionState(msg.PhoneNumber), &models.FlowOutcome{
			Flow:  models.FlowAuxiliary,
			Event: models.EventOperationFailed,
		})
		return &models.Reply{Reply: safe, SessionID: msg.PhoneNumber}, fmt.Errorf("load session %s: %w", msg.PhoneNumber, err)
	}

	// At-least-once transport: a replayed message id re-serves the prior
	// reply instead of committing twice.
	if msg.MessageID != "" && state.AlreadyProcessed(msg.MessageID) {
		log.Info().Str("sessionId", msg.PhoneNumber).Str("messageId", msg.MessageID).Msg("Duplicate message, replaying reply")
		o.metrics.CountReplay(ctx)
		reply := o.render(ctx, state, &models.FlowOutcome{Flow: models.FlowAuxiliary, Event: models.EventReplay})
		return &models.Reply{Reply: reply, SessionID: state.SessionID, Replayed: true}, nil
	}

	sel := router.Select(msg.Text, state, o.rules)
	outcome := o.dispatch(ctx, state, msg, sel)

	if msg.MessageID != "" {
		state.MarkProcessed(msg.MessageID)
	}
	state.Touch()

	reply := o.render(ctx, state, outcome)
	state.LastReply = reply

	if err := o.store.Save(ctx, state); err != nil {
		// The Save is the single durability point: nothing from this message
		// survives, and the transport may redeliver.
		return nil, fmt.Errorf("persist session %s: %w", state.SessionID, err)
	}

	o.metrics.CountMessage(ctx, sel.Gate, outcome)
	log.Info().
		Str("sessionId", state.SessionID).
		Int("gate", sel.Gate).
		Str("flow", string(outcome.Flow)).
		Str("event", string(outcome.Event)).
		Msg("Message processed")

	return &models.Reply{Reply: reply, SessionID: state.SessionID, Flow: outcome.Flow}, nil
}

// dispatch executes the selected flow.
func (o *Orchestrator) dispatch(ctx context.Context, state *models.SessionState, msg models.InboundMessage, sel router.Selection) *models.FlowOutcome {
	switch sel.Gate {
	case router.GateOperationalNote:
		return o.handlers.Operational(ctx, state, sel.NoteBody)

	case router.GatePending:
		return o.resolvePending(ctx, state, msg)

	case router.GateResumption:
		ext := o.classify(ctx, msg.Text, state)
		if ext == nil {
			return o.handlers.Auxiliary(state)
		}
		return o.handlers.Clinical(ctx, state, ext.Vitais, ext.Nota)

	case router.GateBootstrap:
		return o.handlers.Bootstrap(ctx, state)

	case router.GateFinalization:
		ext := o.classify(ctx, msg.Text, state) // best-effort summary extraction
		return o.handlers.Finalization(ctx, state, ext)

	default:
		return o.delegate(ctx, state, msg)
	}
}

// resolvePending routes a message through the confirmation manager. When the
// message is neither sim nor nao, the pending stays and incidental clinical
// data is still folded into the accumulator so the caregiver never has to
// re-enter it; the reply then restates the outstanding confirmation.
func (o *Orchestrator) resolvePending(ctx context.Context, state *models.SessionState, msg models.InboundMessage) *models.FlowOutcome {
	if outcome, handled := o.pend.Resolve(ctx, state, msg.Text); handled {
		o.metrics.CountResolution(ctx, outcome)
		return outcome
	}

	if ext := o.classify(ctx, msg.Text, state); ext != nil && (len(ext.Vitais) > 0 || (ext.Intent == models.FlowClinical && ext.Nota != "")) {
		// Merge only: a prepare here would clobber the outstanding payload.
		clinical.Merge(&state.Clinico, ext.Vitais, ext.Nota)
		log.Debug().Str("sessionId", state.SessionID).Msg("Clinical data preserved while confirmation outstanding")
	}

	return &models.FlowOutcome{
		Flow:    state.Pendente.Fluxo,
		Event:   models.EventConfirmationRequested,
		Payload: state.Pendente.Payload,
	}
}

// delegate asks the fiscal classifier for the intent and dispatches the
// matching handler. A dead or unusable classifier degrades to help.
func (o *Orchestrator) delegate(ctx context.Context, state *models.SessionState, msg models.InboundMessage) *models.FlowOutcome {
	ext := o.classify(ctx, msg.Text, state)
	if ext == nil {
		return o.handlers.Auxiliary(state)
	}

	switch ext.Intent {
	case models.FlowOperational:
		note := ext.Nota
		if note == "" {
			note = msg.Text
		}
		return o.handlers.Operational(ctx, state, note)
	case models.FlowSchedule:
		return o.handlers.Schedule(ctx, state, ext)
	case models.FlowClinical:
		return o.handlers.Clinical(ctx, state, ext.Vitais, ext.Nota)
	case models.FlowFinalization:
		return o.handlers.Finalization(ctx, state, ext)
	default:
		return o.handlers.Auxiliary(state)
	}
}

func (o *Orchestrator) classify(ctx context.Context, text string, state *models.SessionState) *models.Extraction {
	if o.classifier == nil {
		return nil
	}
	ext, err := o.classifier.Classify(ctx, text, state)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", state.SessionID).Msg("Classification failed, defaulting to help")
		return nil
	}
	return ext
}

// render produces the reply text, falling back to the deterministic templates
// when the fiscal responder is absent or down.
func (o *Orchestrator) render(ctx context.Context, state *models.SessionState, outcome *models.FlowOutcome) string {
	if o.responder != nil {
		reply, err := o.responder.Render(ctx, state, outcome)
		if err == nil {
			return reply
		}
		log.Warn().Err(err).Str("sessionId", state.SessionID).Msg("Fiscal render failed, using template")
	}

	reply, err := o.fallback.Render(ctx, state, outcome)
	if err != nil {
		log.Error().Err(err).Str("event", string(outcome.Event)).Msg("Template render failed")
		return "Desculpe, nao consegui processar sua mensagem agora."
	}
	return reply
}
