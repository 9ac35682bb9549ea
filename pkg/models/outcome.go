package models

// OutcomeEvent classifies what a flow handler did with a message. The fiscal
// responder renders the user-facing reply from the final state plus this
// outcome; the core never formats text beyond the template fallback.
type OutcomeEvent string

const (
	// EventNoteSaved: an operational note was persisted and delivered, no
	// confirmation involved.
	EventNoteSaved OutcomeEvent = "note_saved"
	// EventBootstrapped: schedule lookup succeeded and sessao is populated.
	EventBootstrapped OutcomeEvent = "bootstrapped"
	// EventConfirmationRequested: a payload was staged and the caregiver must
	// answer sim/nao.
	EventConfirmationRequested OutcomeEvent = "confirmation_requested"
	// EventCommitted: an affirmative resolution executed the staged payload.
	EventCommitted OutcomeEvent = "committed"
	// EventCancelled: a negative resolution discarded the staged payload.
	EventCancelled OutcomeEvent = "cancelled"
	// EventMissingFields: first-measurement gating rejected the prepare and
	// the listed fields are still required.
	EventMissingFields OutcomeEvent = "missing_fields"
	// EventNeedsBootstrap: the flow requires schedule context that does not
	// exist yet.
	EventNeedsBootstrap OutcomeEvent = "needs_bootstrap"
	// EventHelp: auxiliary/help flow, including finalization requests made
	// while the finish reminder is inactive.
	EventHelp OutcomeEvent = "help"
	// EventOperationFailed: an external operation failed; for confirmations
	// the pending stays so the caregiver can retry.
	EventOperationFailed OutcomeEvent = "operation_failed"
	// EventReplay: duplicate message id, prior reply re-served.
	EventReplay OutcomeEvent = "replay"
)

// FlowOutcome is what a flow handler reports back to the orchestrator.
type FlowOutcome struct {
	Flow    Flow              `json:"flow"`
	Event   OutcomeEvent      `json:"event"`
	Missing []string          `json:"missing,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}
