// Package backend is the boundary to the external scheduling/clinical record
// services. Every call is synchronous, carries an explicit timeout, and is
// never retried by the core: retry of a confirmed operation is user-driven.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/pkg/models"
)

// ErrBackendUnavailable wraps timeouts and non-2xx responses from the
// external services.
var ErrBackendUnavailable = errors.New("backend unavailable")

// LookupResult is what the schedule lookup returns for a phone number.
type LookupResult struct {
	Schedule           models.ScheduleContext `json:"schedule"`
	ScheduleStarted    bool                   `json:"scheduleStarted"`
	FinishReminderSent bool                   `json:"finishReminderSent"`
}

// Operations is the contract the flow handlers and the confirmation manager
// depend on. The four methods map one-to-one to the external operations.
type Operations interface {
	ScheduleLookup(ctx context.Context, phoneNumber string) (*LookupResult, error)
	ConfirmAttendance(ctx context.Context, payload map[string]string) error
	SaveClinicalData(ctx context.Context, payload map[string]string) error
	FinalizeShift(ctx context.Context, payload map[string]string) error
}

// Client is the HTTP implementation of Operations.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config holds backend connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a backend client with the configured timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// scheduleLookupResponse is the wire shape of the lookup endpoint.
type scheduleLookupResponse struct {
	CaregiverID        string `json:"caregiverID"`
	ScheduleID         string `json:"scheduleID"`
	ReportID           string `json:"reportID"`
	ReportDate         string `json:"reportDate"`
	ShiftAllow         bool   `json:"shiftAllow"`
	PatientID          string `json:"patientID"`
	ScheduleStarted    bool   `json:"scheduleStarted"`
	FinishReminderSent bool   `json:"finishReminderSent"`
	CompanyID          string `json:"companyID"`
	UnitID             string `json:"unitID"`
}

// ScheduleLookup resolves the caregiver's current shift by phone number.
func (c *Client) ScheduleLookup(ctx context.Context, phoneNumber string) (*LookupResult, error) {
	body := map[string]string{models.FieldPhoneNumber: phoneNumber}

	var resp scheduleLookupResponse
	if err := c.post(ctx, "/v1/schedule/lookup", body, &resp); err != nil {
		return nil, err
	}

	return &LookupResult{
		Schedule: models.ScheduleContext{
			ScheduleID:  resp.ScheduleID,
			ReportID:    resp.ReportID,
			ReportDate:  resp.ReportDate,
			CaregiverID: resp.CaregiverID,
			PatientID:   resp.PatientID,
			CompanyID:   resp.CompanyID,
			UnitID:      resp.UnitID,
			ShiftAllow:  resp.ShiftAllow,
		},
		ScheduleStarted:    resp.ScheduleStarted,
		FinishReminderSent: resp.FinishReminderSent,
	}, nil
}

// ConfirmAttendance commits an attendance confirmation payload verbatim.
func (c *Client) ConfirmAttendance(ctx context.Context, payload map[string]string) error {
	return c.post(ctx, "/v1/attendance/confirm", payload, nil)
}

// clinicalSaveBody is the wire shape of the clinical write: identifiers at
// the top level, vitals nested under vitalSignsData.
type clinicalSaveBody struct {
	ReportID       string            `json:"reportID"`
	ReportDate     string            `json:"reportDate"`
	ScheduleID     string            `json:"scheduleID"`
	CaregiverID    string            `json:"caregiverID"`
	PatientID      string            `json:"patientID"`
	VitalSignsData map[string]string `json:"vitalSignsData,omitempty"`
	ClinicalNote   string            `json:"clinicalNote,omitempty"`
}

// SaveClinicalData commits a clinical payload, reshaping the flat staged map
// into the nested wire format without adding or re-deriving any field.
func (c *Client) SaveClinicalData(ctx context.Context, payload map[string]string) error {
	body := clinicalSaveBody{
		ReportID:     payload[models.FieldReportID],
		ReportDate:   payload[models.FieldReportDate],
		ScheduleID:   payload[models.FieldScheduleID],
		CaregiverID:  payload[models.FieldCaregiverID],
		PatientID:    payload[models.FieldPatientID],
		ClinicalNote: payload[models.FieldClinicalNote],
	}
	vitals := map[string]string{}
	for _, field := range []string{
		models.FieldHeartRate, models.FieldBloodPressure, models.FieldRespRate,
		models.FieldSaturationO2, models.FieldTemperature, models.FieldRespCondition,
	} {
		if v, ok := payload[field]; ok && v != "" {
			vitals[field] = v
		}
	}
	if len(vitals) > 0 {
		body.VitalSignsData = vitals
	}
	return c.post(ctx, "/v1/clinical/save", body, nil)
}

// FinalizeShift commits the shift-summary payload verbatim.
func (c *Client) FinalizeShift(ctx context.Context, payload map[string]string) error {
	return c.post(ctx, "/v1/shift/finalize", payload, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Backend call failed")
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrBackendUnavailable, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s malformed response: %v", ErrBackendUnavailable, path, err)
	}
	return nil
}
