package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// Progress band owned by the scraper: job_started pins 0, listing progress
// is scaled into [progressFloor, progressCeil], and the loader takes over
// above 90.
const (
	progressFloor = 5.0
	progressCeil  = 90.0
)

// ExtractorFactory builds a skill extractor for the API key carried in a
// job's parameters. Returning an error degrades the job to
// skill-extraction-disabled rather than failing it.
type ExtractorFactory func(apiKey string) (SkillExtractor, error)

// WorkerOptions configures a scraping Worker.
type WorkerOptions struct {
	Emitter *broker.Emitter
	Site    ListingSource
	// NewExtractor is optional; nil disables skill extraction entirely.
	NewExtractor ExtractorFactory
	Config       config.ScraperConfig
	Logger       *slog.Logger
}

// Worker processes one job_requested event at a time.
type Worker struct {
	emitter      *broker.Emitter
	site         ListingSource
	newExtractor ExtractorFactory
	cfg          config.ScraperConfig
	logger       *slog.Logger
}

// NewWorker builds a scraping worker.
func NewWorker(opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		emitter:      opts.Emitter,
		site:         opts.Site,
		newExtractor: opts.NewExtractor,
		cfg:          opts.Config,
		logger:       logger.With("component", "scraper_worker"),
	}
}

// Handle is the broker.Handler for the scraping topic. All failures are
// reported through the emitter and return nil: the event is consumed either
// way and a retry would re-scrape from scratch.
func (w *Worker) Handle(ctx context.Context, topic string, ev model.JobEvent) error {
	if ev.EventType != model.EventJobRequested {
		w.logger.WarnContext(ctx, "ignoring unexpected event on scraping topic",
			"topic", topic, "event_type", ev.EventType, "job_id", ev.JobID)
		return nil
	}

	jobID := ev.JobID
	params := ev.Parameters
	if err := params.Validate(); err != nil {
		w.emitter.FailJob(ctx, jobID, err, 0)
		return nil
	}

	extractor := w.initExtractor(ctx, jobID, params.GoogleAPIKey)

	w.logger.InfoContext(ctx, "scrape started",
		"job_id", jobID,
		"job_titles", params.JobTitles,
		"location", params.Location,
		"max_jobs", params.MaxJobs,
		"skills_enabled", extractor != nil,
	)
	w.emitter.JobStarted(ctx, jobID, "Initializing")

	listings, err := w.scrape(ctx, jobID, params, extractor)
	if err != nil {
		w.emitter.FailJob(ctx, jobID, err, 0)
		return nil
	}

	path, err := WriteResultFile(w.cfg.DataDir, jobID, listings)
	if err != nil {
		w.emitter.FailJob(ctx, jobID, err, 0)
		return nil
	}

	if err := w.emitter.LoadingRequested(ctx, jobID, path); err != nil {
		w.emitter.FailJob(ctx, jobID, err, 0)
		return nil
	}

	w.logger.InfoContext(ctx, "scrape finished",
		"job_id", jobID, "listings", len(listings), "data_path", path)
	return nil
}

// initExtractor builds the per-job skill extractor. No key or a failed
// initialization disables extraction for this job only.
func (w *Worker) initExtractor(ctx context.Context, jobID, apiKey string) SkillExtractor {
	if apiKey == "" || w.newExtractor == nil {
		return nil
	}
	extractor, err := w.newExtractor(apiKey)
	if err != nil {
		w.logger.WarnContext(ctx, "skill extractor unavailable, continuing without skills",
			"job_id", jobID, "error", err)
		return nil
	}
	return extractor
}

// scrape walks titles and pages until maxJobs listings are collected or the
// search space is exhausted. A page fetch error abandons that title's
// remaining pages but not the other titles.
func (w *Worker) scrape(
	ctx context.Context,
	jobID string,
	params *model.ScrapeParameters,
	extractor SkillExtractor,
) ([]model.JobListing, error) {
	collected := make([]model.JobListing, 0, params.MaxJobs)

	for _, title := range params.Titles() {
		if len(collected) >= params.MaxJobs {
			break
		}

		for start := 0; len(collected) < params.MaxJobs; start += PageSize {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeCanceled, "scrape interrupted")
			}

			page, err := w.site.SearchPage(ctx, SearchQuery{
				Title:      title,
				Location:   params.Location,
				TimeFilter: params.TimeFilter,
				Start:      start,
			})
			if err != nil {
				w.logger.WarnContext(ctx, "page fetch failed, abandoning title",
					"job_id", jobID, "title", title, "start", start, "error", err)
				break
			}

			for i := range page.Listings {
				if len(collected) >= params.MaxJobs {
					break
				}
				listing := page.Listings[i]
				w.enrich(ctx, jobID, &listing, extractor)
				collected = append(collected, listing)

				pct := progressFloor +
					(progressCeil-progressFloor)*float64(len(collected))/float64(params.MaxJobs)
				w.emitter.Progress(ctx, jobID, pct,
					fmt.Sprintf("Processing job %d/%d: %s", len(collected), params.MaxJobs, listing.Title))
			}

			// Only a page with no cards at all exhausts the title's search
			// space. A short list of kept listings just means some cards were
			// incomplete and got filtered out.
			if page.Cards == 0 {
				break
			}
			w.sleep(ctx, w.cfg.MinPageDelay, w.cfg.MaxPageDelay)
		}
	}

	return collected, nil
}

// enrich fetches the detail page and, when enabled, the skill list. Both
// are best-effort: a failed fetch leaves the listing without a description,
// a failed extraction leaves it without skills.
func (w *Worker) enrich(ctx context.Context, jobID string, listing *model.JobListing, extractor SkillExtractor) {
	w.sleep(ctx, w.cfg.MinDetailDelay, w.cfg.MaxDetailDelay)

	description, err := w.site.FetchDescription(ctx, listing.URL)
	if err != nil {
		w.logger.WarnContext(ctx, "detail fetch failed",
			"job_id", jobID, "url", listing.URL, "error", err)
	}
	listing.Description = description
	listing.ExtractedSkills = []string{}

	if extractor == nil || description == "" {
		return
	}
	skills, err := extractor.Extract(ctx, description)
	if err != nil {
		w.logger.WarnContext(ctx, "skill extraction failed",
			"job_id", jobID, "url", listing.URL, "error", err)
		return
	}
	listing.ExtractedSkills = model.DedupeSkills(skills)
}

// sleep blocks for a random duration in [min, max], returning early on
// context cancellation.
func (w *Worker) sleep(ctx context.Context, minDelay, maxDelay time.Duration) {
	if maxDelay <= 0 {
		return
	}
	d := minDelay
	if span := maxDelay - minDelay; span > 0 {
		d += rand.N(span)
	}
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
