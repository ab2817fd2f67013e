// Package httpx provides the HTTP gateway for the job pipeline: the trigger
// endpoint, status reads, the persisted-jobs API, and the websocket upgrade.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
	"github.com/jobsift/jobsift/internal/status"
)

// PipelineHandlers serves the trigger and status endpoints.
type PipelineHandlers struct {
	Publisher    broker.Publisher
	Tracker      *status.Tracker
	GoogleAPIKey string
	Logger       *slog.Logger
}

// TriggerRequest is the POST /trigger-job-pipeline body. The server-side
// API key is injected after validation and never accepted from clients.
type TriggerRequest struct {
	JobTitles  string `json:"job_titles"`
	Location   string `json:"location"`
	TimeFilter string `json:"time_filter"`
	MaxJobs    int    `json:"max_jobs"`
}

// TriggerJobPipeline validates the request, publishes job_requested to the
// scraping topic, and records the job as requested. Responds 202 with the
// generated job ID.
func (h *PipelineHandlers) TriggerJobPipeline(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	params := model.ScrapeParameters{
		GoogleAPIKey: h.GoogleAPIKey,
		JobTitles:    req.JobTitles,
		Location:     req.Location,
		TimeFilter:   req.TimeFilter,
		MaxJobs:      req.MaxJobs,
	}
	if err := params.Validate(); err != nil {
		WriteAppError(w, err)
		return
	}
	if h.GoogleAPIKey == "" {
		WriteAppError(w, apperrors.Internal("server is missing the Google API key"))
		return
	}

	jobID := uuid.NewString()
	ev := model.NewJobEvent(jobID, model.EventJobRequested, model.SourceGateway)
	ev.Parameters = &params

	if err := h.Publisher.Publish(r.Context(), broker.TopicScrapingJobs, ev); err != nil {
		h.Logger.ErrorContext(r.Context(), "failed to publish job_requested",
			"job_id", jobID, "error", err)
		WriteAppError(w, err)
		return
	}

	// Track only jobs that actually entered the pipeline: recording before
	// the publish would leave a phantom entry behind a 503.
	h.Tracker.Record(jobID, map[string]any{
		"job_titles":  req.JobTitles,
		"location":    req.Location,
		"time_filter": req.TimeFilter,
		"max_jobs":    req.MaxJobs,
	})

	h.Logger.InfoContext(r.Context(), "job pipeline triggered",
		"job_id", jobID, "job_titles", req.JobTitles, "max_jobs", req.MaxJobs)
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Job pipeline triggered",
		"job_id":  jobID,
	})
}

// JobStatus returns the tracked state for one job.
func (h *PipelineHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	entry, ok := h.Tracker.Get(jobID)
	if !ok {
		WriteAppError(w, apperrors.NotFoundf("job %s not found", jobID))
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}
