// Package models contains domain models for plantao.
package models

import (
	"sort"
	"time"
)

// Flow identifies one business flow handled by the orchestrator.
type Flow string

const (
	FlowOperational  Flow = "operacional"
	FlowSchedule     Flow = "agenda"
	FlowClinical     Flow = "clinico"
	FlowFinalization Flow = "finalizacao"
	FlowAuxiliary    Flow = "auxiliar"
)

// Vital-sign vocabulary. CondResp is the respiratory-condition field; it is
// merged like a vital but serialized into vitalSignsData on save.
const (
	VitalPA       = "PA"
	VitalFC       = "FC"
	VitalFR       = "FR"
	VitalSat      = "Sat"
	VitalTemp     = "Temp"
	VitalCondResp = "CondResp"
)

// RequiredVitals is the set a first full measurement must cover, in the order
// missing fields are reported back to the caregiver.
var RequiredVitals = []string{VitalPA, VitalFC, VitalFR, VitalSat, VitalTemp, VitalCondResp}

// ProcessedIDWindow caps how many recent message ids are kept per session for
// replay detection.
const ProcessedIDWindow = 50

// ScheduleContext is the cached scheduling context ("sessao"), populated on
// the first successful schedule lookup and refreshed only by a new lookup.
type ScheduleContext struct {
	ScheduleID  string `json:"scheduleID"`
	ReportID    string `json:"reportID"`
	ReportDate  string `json:"reportDate"`
	CaregiverID string `json:"caregiverID"`
	PatientID   string `json:"patientID"`
	CompanyID   string `json:"companyID,omitempty"`
	UnitID      string `json:"unitID,omitempty"`
	ShiftAllow  bool   `json:"shiftAllow"`
}

// ClinicalState is the clinical accumulator ("clinico").
type ClinicalState struct {
	Vitais           map[string]string `json:"vitais,omitempty"`
	Nota             string            `json:"nota,omitempty"`
	Faltantes        []string          `json:"faltantes,omitempty"`
	AfericaoCompleta bool              `json:"afericao_completa_realizada"`
}

// PendingConfirmation is a staged, not-yet-executed external operation
// awaiting explicit user approval. At most one exists per session; a new
// prepare fully replaces a prior one.
type PendingConfirmation struct {
	Fluxo   Flow              `json:"fluxo"`
	Payload map[string]string `json:"payload"`
}

// SessionState is the durable per-session state. Identity is the normalized
// phone number. Field names follow the persisted vocabulary.
type SessionState struct {
	SessionID          string               `json:"session_id"`
	FluxosExecutados   []string             `json:"fluxos_executados,omitempty"`
	Sessao             *ScheduleContext     `json:"sessao,omitempty"`
	Clinico            ClinicalState        `json:"clinico"`
	Pendente           *PendingConfirmation `json:"pendente,omitempty"`
	FinishReminderSent bool                 `json:"finishReminderSent"`
	ProcessedIDs       []string             `json:"processedIDs,omitempty"`
	LastReply          string               `json:"lastReply,omitempty"`
	AtualizadoEm       time.Time            `json:"atualizadoEm"`
}

// NewSessionState returns the lazily-created default state for a session id.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID:    sessionID,
		Clinico:      ClinicalState{Vitais: map[string]string{}},
		AtualizadoEm: time.Now().UTC(),
	}
}

// Touch updates the last-mutation timestamp.
func (s *SessionState) Touch() {
	s.AtualizadoEm = time.Now().UTC()
}

// HasSchedule reports whether usable scheduling context is cached.
func (s *SessionState) HasSchedule() bool {
	return s.Sessao != nil && s.Sessao.ScheduleID != ""
}

// AppendFlow records a successfully completed flow. Append-only.
func (s *SessionState) AppendFlow(f Flow) {
	s.FluxosExecutados = append(s.FluxosExecutados, string(f))
}

// SetPending replaces any outstanding confirmation with a new one. The
// payload is copied so later session mutations cannot alias into it.
func (s *SessionState) SetPending(f Flow, payload map[string]string) {
	cp := make(map[string]string, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	s.Pendente = &PendingConfirmation{Fluxo: f, Payload: cp}
}

// ClearPending drops the outstanding confirmation, if any.
func (s *SessionState) ClearPending() {
	s.Pendente = nil
}

// AlreadyProcessed reports whether a message id was already handled in the
// idempotency window.
func (s *SessionState) AlreadyProcessed(messageID string) bool {
	for _, id := range s.ProcessedIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// MarkProcessed records a message id, evicting the oldest beyond the window.
func (s *SessionState) MarkProcessed(messageID string) {
	s.ProcessedIDs = append(s.ProcessedIDs, messageID)
	if len(s.ProcessedIDs) > ProcessedIDWindow {
		s.ProcessedIDs = s.ProcessedIDs[len(s.ProcessedIDs)-ProcessedIDWindow:]
	}
}

// MissingVitals returns the required vitals absent from the accumulator, in
// reporting order.
func (c *ClinicalState) MissingVitals() []string {
	var missing []string
	for _, name := range RequiredVitals {
		if v, ok := c.Vitais[name]; !ok || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// SortedVitalNames returns the recorded vital names sorted, for stable logs.
func (c *ClinicalState) SortedVitalNames() []string {
	names := make([]string, 0, len(c.Vitais))
	for name := range c.Vitais {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
