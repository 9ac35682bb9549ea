package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenacare/plantao/pkg/models"
)

func TestScheduleLookup(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(scheduleLookupResponse{
			CaregiverID:        "cg-1",
			ScheduleID:         "sch-1",
			ReportID:           "rep-1",
			ReportDate:         "2026-08-23",
			ShiftAllow:         true,
			PatientID:          "pt-1",
			ScheduleStarted:    true,
			FinishReminderSent: false,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	res, err := c.ScheduleLookup(context.Background(), "5511999990000")
	require.NoError(t, err)

	assert.Equal(t, "/v1/schedule/lookup", gotPath)
	assert.Equal(t, map[string]string{"phoneNumber": "5511999990000"}, gotBody)
	assert.Equal(t, "sch-1", res.Schedule.ScheduleID)
	assert.Equal(t, "cg-1", res.Schedule.CaregiverID)
	assert.True(t, res.ScheduleStarted)
	assert.False(t, res.FinishReminderSent)
}

func TestSaveClinicalDataNestsVitals(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := map[string]string{
		models.FieldReportID:      "rep-1",
		models.FieldReportDate:    "2026-08-23",
		models.FieldScheduleID:    "sch-1",
		models.FieldCaregiverID:   "cg-1",
		models.FieldPatientID:     "pt-1",
		models.FieldBloodPressure: "130x85",
		models.FieldSaturationO2:  "96",
		models.FieldClinicalNote:  "dor no peito",
	}

	c := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, c.SaveClinicalData(context.Background(), payload))

	assert.Equal(t, "rep-1", gotBody["reportID"])
	assert.Equal(t, "dor no peito", gotBody["clinicalNote"])

	vitals, ok := gotBody["vitalSignsData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "130x85", vitals["bloodPressure"])
	assert.Equal(t, "96", vitals["saturationO2"])
	// The payload is committed verbatim: no extra fields appear.
	assert.NotContains(t, gotBody, "action")
}

func TestNoteOnlySaveOmitsVitalSigns(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := map[string]string{
		models.FieldReportID:     "rep-1",
		models.FieldReportDate:   "2026-08-23",
		models.FieldScheduleID:   "sch-1",
		models.FieldCaregiverID:  "cg-1",
		models.FieldPatientID:    "pt-1",
		models.FieldClinicalNote: "paciente dormiu bem",
	}

	c := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, c.SaveClinicalData(context.Background(), payload))

	assert.NotContains(t, gotBody, "vitalSignsData")
}

func TestNon2xxSurfacesAsBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.ConfirmAttendance(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestTimeoutSurfacesAsBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.FinalizeShift(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestMalformedLookupResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.ScheduleLookup(context.Background(), "5511999990000")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
