package worker

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenacare/plantao/internal/backend"
	"github.com/plenacare/plantao/internal/flows"
	"github.com/plenacare/plantao/internal/pending"
	"github.com/plenacare/plantao/internal/rules"
	"github.com/plenacare/plantao/internal/store"
	"github.com/plenacare/plantao/internal/worker/sse"
	"github.com/plenacare/plantao/pkg/models"
)

func newTestService(t *testing.T) (*Service, *scriptedOps) {
	t.Helper()
	ops := &scriptedOps{
		lookup: backend.LookupResult{
			Schedule: models.ScheduleContext{
				ScheduleID: "sch-1", ReportID: "rep-1", ReportDate: "2026-08-23",
				CaregiverID: "cg-1", PatientID: "pt-1",
			},
			ScheduleStarted: true,
		},
	}
	r := rules.Default()
	pend := pending.NewManager(ops, r, nil)
	handlers := flows.NewHandlers(ops, pend, nil)
	orch := NewOrchestrator(store.NewMemoryStore(), r, handlers, pend,
		&scriptedClassifier{byText: map[string]*models.Extraction{}}, nil, nil)
	return NewService("test", orch, sse.NewBroadcaster()), ops
}

func postMessage(t *testing.T, svc *Service, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessageBootstraps(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postMessage(t, svc, models.InboundMessage{
		MessageID:   "m-1",
		PhoneNumber: "5511988887777",
		Text:        "oi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var reply models.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "5511988887777", reply.SessionID)
	assert.Equal(t, models.FlowSchedule, reply.Flow)
	assert.NotEmpty(t, reply.Reply)
}

func TestHandleMessageMalformedEnvelope(t *testing.T) {
	svc, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed")
}

func TestHandleMessageRequiresPhoneNumber(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postMessage(t, svc, models.InboundMessage{MessageID: "m-1", Text: "oi"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "phoneNumber")
}

func TestHandleMessageBackendOutageStillReplies(t *testing.T) {
	svc, ops := newTestService(t)
	ops.lookupErr = backend.ErrBackendUnavailable

	rec := postMessage(t, svc, models.InboundMessage{
		MessageID:   "m-1",
		PhoneNumber: "5511988887777",
		Text:        "oi",
	})

	// Outcome-level failures still reach the user as a safe reply.
	require.Equal(t, http.StatusOK, rec.Code)
	var reply models.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.NotEmpty(t, reply.Reply)
}

func TestHandleHealth(t *testing.T) {
	svc, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHandleMessageReplay(t *testing.T) {
	svc, _ := newTestService(t)
	msg := models.InboundMessage{MessageID: "m-dup", PhoneNumber: "5511988887777", Text: "oi"}

	first := postMessage(t, svc, msg)
	require.Equal(t, http.StatusOK, first.Code)

	second := postMessage(t, svc, msg)
	require.Equal(t, http.StatusOK, second.Code)

	var replay models.Reply
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &replay))
	assert.True(t, replay.Replayed)

	var original models.Reply
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &original))
	assert.Equal(t, original.Reply, replay.Reply, "replay must re-serve the stored reply")
}
