package models

// InboundMessage is the envelope the transport delivers, once per caregiver
// message. PhoneNumber is already normalized and doubles as the session id.
type InboundMessage struct {
	MessageID   string            `json:"message_id"`
	PhoneNumber string            `json:"phoneNumber"`
	Text        string            `json:"text"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Reply is the outbound envelope handed back to the transport.
type Reply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	Flow      Flow   `json:"flow,omitempty"`
	Replayed  bool   `json:"replayed,omitempty"`
}

// Extraction is the validated output of the fiscal classifier for one
// message: a closed intent plus whatever structured data it pulled out.
// The classifier's raw output is duck-typed; everything here has already
// passed boundary validation.
type Extraction struct {
	Intent        Flow              `json:"intent"`
	Vitais        map[string]string `json:"vitais,omitempty"`
	Nota          string            `json:"nota,omitempty"`
	RespostaValor string            `json:"respostaValor,omitempty"`
	Resumo        map[string]string `json:"resumo,omitempty"`
}

// ValidIntent maps a raw classifier label to the closed flow set. Anything
// unrecognized degrades to the auxiliary flow.
func ValidIntent(raw string) Flow {
	switch Flow(raw) {
	case FlowOperational, FlowSchedule, FlowClinical, FlowFinalization, FlowAuxiliary:
		return Flow(raw)
	default:
		return FlowAuxiliary
	}
}
