package httpx

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jobsift/jobsift/internal/data"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// JobHandlers serves the persisted-jobs read and mutation endpoints.
type JobHandlers struct {
	Repo   *data.JobRepo
	Cache  *data.JobListCache
	Logger *slog.Logger
}

// ListData returns a page of persisted jobs with skills, going through the
// Redis page cache when one is configured.
func (h *JobHandlers) ListData(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", data.DefaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if jobs, ok := h.Cache.Get(r.Context(), limit, offset); ok {
		WriteJSON(w, http.StatusOK, jobs)
		return
	}

	jobs, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "failed to list jobs", "error", err)
		WriteAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}

	h.Cache.Set(r.Context(), limit, offset, jobs)
	WriteJSON(w, http.StatusOK, jobs)
}

// progressRequest is the PATCH /jobs/{job_id}/progress body.
type progressRequest struct {
	Progress string `json:"progress"`
}

// UpdateProgress mutates the application-tracking label of one job.
func (h *JobHandlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Progress == "" {
		WriteAppError(w, apperrors.ValidationField("progress", "progress must not be empty"))
		return
	}

	job, err := h.Repo.UpdateProgress(r.Context(), jobID, req.Progress)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.Cache.Invalidate(r.Context())
	WriteJSON(w, http.StatusOK, job)
}

// DeleteJob removes one persisted job; skills cascade with it.
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	if err := h.Repo.Delete(r.Context(), jobID); err != nil {
		WriteAppError(w, err)
		return
	}

	h.Cache.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func pathJobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	jobID, err := strconv.ParseInt(r.PathValue("job_id"), 10, 64)
	if err != nil {
		WriteAppError(w, apperrors.ValidationField("job_id", "job_id must be an integer"))
		return 0, false
	}
	return jobID, true
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
