package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/broker/brokertest"
	apperrors "github.com/jobsift/jobsift/internal/errors"
	"github.com/jobsift/jobsift/internal/status"
)

func newTestRouter(pub *brokertest.CapturePublisher, tracker *status.Tracker) http.Handler {
	return NewRouter(RouterServices{
		Publisher:    pub,
		Tracker:      tracker,
		KafkaBroker:  "kafka:9092",
		GoogleAPIKey: "test-key",
	})
}

func postTrigger(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/trigger-job-pipeline", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTriggerJobPipelineAccepted(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	tracker := status.NewTracker(nil)
	router := newTestRouter(pub, tracker)

	rec := postTrigger(t, router,
		`{"job_titles":"data engineer","location":"Paris","time_filter":"1w","max_jobs":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	assert.Equal(t, "Job pipeline triggered", resp["message"])

	// The job is tracked as requested before the 202 goes out.
	entry, ok := tracker.Get(resp["job_id"])
	require.True(t, ok)
	assert.Equal(t, status.StateRequested, entry.Status)
	assert.Equal(t, "Paris", entry.Details["location"])

	// One job_requested on the scraping topic carrying the injected key.
	events := pub.EventsOn(broker.TopicScrapingJobs)
	require.Len(t, events, 1)
	assert.Equal(t, resp["job_id"], events[0].JobID)
	require.NotNil(t, events[0].Parameters)
	assert.Equal(t, "test-key", events[0].Parameters.GoogleAPIKey)
	assert.Equal(t, 2, events[0].Parameters.MaxJobs)
}

func TestTriggerJobPipelineValidation(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	router := newTestRouter(pub, status.NewTracker(nil))

	cases := []struct {
		name string
		body string
	}{
		{"empty titles", `{"job_titles":"","location":"Paris","time_filter":"1w","max_jobs":5}`},
		{"empty location", `{"job_titles":"dev","location":"","time_filter":"1w","max_jobs":5}`},
		{"bad time filter", `{"job_titles":"dev","location":"Paris","time_filter":"2y","max_jobs":5}`},
		{"zero max jobs", `{"job_titles":"dev","location":"Paris","time_filter":"1w","max_jobs":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postTrigger(t, router, tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}

	// No broker traffic on validation failures.
	assert.Empty(t, pub.Events())
}

func TestTriggerJobPipelineIgnoresUnknownFields(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	router := newTestRouter(pub, status.NewTracker(nil))

	// Extra body fields are ignored rather than rejected so older or
	// over-eager clients can still trigger jobs.
	rec := postTrigger(t, router,
		`{"job_titles":"dev","location":"Paris","time_filter":"1w","max_jobs":1,"unexpected":"x"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, pub.EventsOn(broker.TopicScrapingJobs), 1)
}

func TestTriggerJobPipelineMissingServerKey(t *testing.T) {
	router := NewRouter(RouterServices{
		Publisher: &brokertest.CapturePublisher{},
		Tracker:   status.NewTracker(nil),
	})

	rec := postTrigger(t, router,
		`{"job_titles":"dev","location":"Paris","time_filter":"1w","max_jobs":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerJobPipelinePublishFailure(t *testing.T) {
	pub := &brokertest.CapturePublisher{PublishErr: apperrors.Broker("no brokers reachable")}
	tracker := status.NewTracker(nil)
	router := newTestRouter(pub, tracker)

	rec := postTrigger(t, router,
		`{"job_titles":"dev","location":"Paris","time_filter":"1w","max_jobs":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// A job that never entered the pipeline must not be tracked: a phantom
	// "requested" entry would answer status reads forever.
	assert.Empty(t, tracker.Snapshot())
}

func TestJobStatusEndpoint(t *testing.T) {
	tracker := status.NewTracker(nil)
	tracker.Record("job-42", nil)
	router := newTestRouter(&brokertest.CapturePublisher{}, tracker)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-42/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry status.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, status.StateRequested, entry.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&brokertest.CapturePublisher{}, status.NewTracker(nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "connected", resp["kafka_connection"])
	assert.Equal(t, "kafka:9092", resp["kafka_broker"])
}

func TestHealthEndpointBrokerDown(t *testing.T) {
	pub := &brokertest.CapturePublisher{PingErr: apperrors.Broker("dial refused")}
	router := newTestRouter(pub, status.NewTracker(nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "error", resp["kafka_connection"])
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&brokertest.CapturePublisher{}, status.NewTracker(nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/data", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpdateProgressRejectsNonIntegerID(t *testing.T) {
	router := newTestRouter(&brokertest.CapturePublisher{}, status.NewTracker(nil))

	req := httptest.NewRequest(http.MethodPatch, "/jobs/abc/progress",
		strings.NewReader(`{"progress":"Applied"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
