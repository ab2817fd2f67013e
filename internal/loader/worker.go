// Package loader implements the loading worker: it consumes
// loading_requested events, reads the scraper's result file, deduplicates
// listings against the database, bulk-commits new rows, and reports
// banded progress in [90, 100].
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// Loader percentage bands: file read and connection failures report at the
// band floor, preparation at 91, pre-commit at 98, success at 100.
const (
	bandFloor    = 90.0
	pctPreparing = 91.0
	pctPreCommit = 98.0
)

// JobStore is the persistence surface the loader needs. *data.JobRepo
// satisfies it; tests stub it.
type JobStore interface {
	ExistingTitleCompanyPairs(ctx context.Context) (map[model.TitleCompanyKey]struct{}, error)
	BulkInsert(ctx context.Context, jobs []model.Job) (int, error)
}

// CacheInvalidator drops cached read-API pages after a commit. Optional.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// WorkerOptions configures a loading Worker.
type WorkerOptions struct {
	Emitter *broker.Emitter
	Store   JobStore
	// Cache is optional.
	Cache  CacheInvalidator
	Logger *slog.Logger
	// DataDir, when set, confines result-file paths: events pointing outside
	// it fail the job instead of being read or deleted.
	DataDir string
	// Now is a clock override for tests; nil uses time.Now.
	Now func() time.Time
}

// Worker processes one loading_requested event at a time.
type Worker struct {
	emitter *broker.Emitter
	store   JobStore
	cache   CacheInvalidator
	logger  *slog.Logger
	dataDir string
	now     func() time.Time
}

// NewWorker builds a loading worker.
func NewWorker(opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		emitter: opts.Emitter,
		store:   opts.Store,
		cache:   opts.Cache,
		logger:  logger.With("component", "loader_worker"),
		dataDir: strings.TrimSpace(opts.DataDir),
		now:     now,
	}
}

// Handle is the broker.Handler for the data-processing topic. Envelope
// mismatches are logged and skipped; job failures are reported through the
// emitter and return nil.
func (w *Worker) Handle(ctx context.Context, topic string, ev model.JobEvent) error {
	if ev.EventType != model.EventLoadingRequested || ev.Source != model.SourceScraper || ev.JobID == "" {
		w.logger.WarnContext(ctx, "ignoring unexpected event on data-processing topic",
			"topic", topic, "event_type", ev.EventType, "source", ev.Source, "job_id", ev.JobID)
		return nil
	}

	jobID := ev.JobID
	w.logger.InfoContext(ctx, "loading started", "job_id", jobID, "data_path", ev.DataPath)

	if err := w.checkDataPath(ev.DataPath); err != nil {
		w.emitter.FailJob(ctx, jobID, err, bandFloor)
		return nil
	}

	listings, err := readResultFile(ev.DataPath)
	if err != nil {
		w.emitter.FailJob(ctx, jobID, err, bandFloor)
		return nil
	}

	if len(listings) == 0 {
		w.emitter.LoadingComplete(ctx, jobID, "Successfully loaded 0 new jobs (empty file)")
		w.removeResultFile(ctx, jobID, ev.DataPath)
		return nil
	}

	existing, err := w.store.ExistingTitleCompanyPairs(ctx)
	if err != nil {
		w.emitter.FailJob(ctx, jobID, err, bandFloor)
		return nil
	}

	w.emitter.LoadingProgress(ctx, jobID, pctPreparing,
		fmt.Sprintf("Preparing to load %d potential jobs...", len(listings)))

	newJobs, duplicates := w.partition(ctx, jobID, listings, existing)

	description := fmt.Sprintf("Preparing to commit %d new jobs...", len(newJobs))
	if duplicates > 0 {
		description = fmt.Sprintf("Identified %d duplicates. Preparing to commit %d new jobs...",
			duplicates, len(newJobs))
	}
	w.emitter.LoadingProgress(ctx, jobID, pctPreCommit, description)

	inserted, err := w.store.BulkInsert(ctx, newJobs)
	if err != nil {
		w.emitter.FailJob(ctx, jobID, err, bandFloor)
		return nil
	}
	if w.cache != nil && inserted > 0 {
		w.cache.Invalidate(ctx)
	}

	w.emitter.LoadingComplete(ctx, jobID,
		fmt.Sprintf("Successfully loaded %d new jobs into the database.", inserted))
	w.logger.InfoContext(ctx, "loading finished",
		"job_id", jobID, "inserted", inserted, "duplicates", duplicates)

	w.removeResultFile(ctx, jobID, ev.DataPath)
	return nil
}

// partition validates listings, drops duplicates by the title/company key
// (against the database set and within this run), and maps survivors onto
// insertable rows.
func (w *Worker) partition(
	ctx context.Context,
	jobID string,
	listings []model.JobListing,
	existing map[model.TitleCompanyKey]struct{},
) ([]model.Job, int) {
	scrapedAt := w.now().UTC()
	newJobs := make([]model.Job, 0, len(listings))
	duplicates := 0

	for i := range listings {
		listing := &listings[i]
		if !listing.ValidForPersistence() {
			w.logger.WarnContext(ctx, "skipping invalid listing",
				"job_id", jobID, "title", listing.Title, "company", listing.Company)
			continue
		}

		key := listing.DedupeKey()
		if _, dup := existing[key]; dup {
			duplicates++
			continue
		}
		existing[key] = struct{}{}

		job := model.NewJob(listing, parseDatePosted(listing.DatePosted), scrapedAt)
		for _, skill := range model.DedupeSkills(listing.ExtractedSkills) {
			job.Skills = append(job.Skills, model.JobSkill{Skill: skill})
		}
		newJobs = append(newJobs, job)
	}
	return newJobs, duplicates
}

// removeResultFile deletes the consumed input file. Failure is a
// system_warning, never a job failure.
func (w *Worker) removeResultFile(ctx context.Context, jobID, path string) {
	if err := os.Remove(path); err != nil {
		w.logger.WarnContext(ctx, "failed to delete result file",
			"job_id", jobID, "path", path, "error", err)
		w.emitter.SystemWarning(ctx, jobID,
			fmt.Sprintf("Could not delete processed file %s: %v", path, err))
	}
}

// readResultFile reads and decodes the scraper's output. A missing file or
// a payload that is not a JSON array is an external failure.
func readResultFile(path string) ([]model.JobListing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeExternal, "read result file %s", path)
	}

	var listings []model.JobListing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeExternal, "result file %s is not a listing array", path)
	}
	return listings, nil
}

// checkDataPath rejects result-file paths outside the configured data
// directory, so a malformed or forged event cannot make the loader read or
// delete arbitrary files.
func (w *Worker) checkDataPath(path string) error {
	if w.dataDir == "" {
		return nil
	}
	rel, err := filepath.Rel(w.dataDir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return apperrors.Validationf("data path %s is outside the data directory", path)
	}
	return nil
}

// parseDatePosted parses YYYY-MM-DD, tolerating an embedded time after a
// space or 'T' separator. Malformed dates become nil rather than failing
// the listing.
func parseDatePosted(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if idx := strings.IndexAny(raw, " T"); idx != -1 {
		raw = raw[:idx]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
