package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/broker/brokertest"
	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

type stubSite struct {
	pages map[string][][]model.JobListing
	// cards overrides the raw card count per page; defaults to the number
	// of listings on the page.
	cards       map[string][]int
	starts      []int
	pageErr     error
	detailErr   error
	description string
}

func (s *stubSite) SearchPage(_ context.Context, q SearchQuery) (SearchResult, error) {
	s.starts = append(s.starts, q.Start)
	if s.pageErr != nil {
		return SearchResult{}, s.pageErr
	}
	pages := s.pages[q.Title]
	idx := q.Start / PageSize
	if idx >= len(pages) {
		return SearchResult{}, nil
	}
	result := SearchResult{Listings: pages[idx], Cards: len(pages[idx])}
	if counts, ok := s.cards[q.Title]; ok && idx < len(counts) {
		result.Cards = counts[idx]
	}
	return result, nil
}

func (s *stubSite) FetchDescription(context.Context, string) (string, error) {
	if s.detailErr != nil {
		return "", s.detailErr
	}
	return s.description, nil
}

type stubExtractor struct {
	skills []string
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) ([]string, error) {
	return s.skills, s.err
}

func listing(title string) model.JobListing {
	return model.JobListing{
		Title:    title,
		Company:  "Acme",
		Location: "Paris",
		URL:      "https://jobs.example.com/" + title,
	}
}

func requestedEvent(jobID string, params *model.ScrapeParameters) model.JobEvent {
	ev := model.NewJobEvent(jobID, model.EventJobRequested, model.SourceGateway)
	ev.Parameters = params
	return ev
}

func newTestWorker(t *testing.T, pub *brokertest.CapturePublisher, site ListingSource, extractor SkillExtractor) *Worker {
	t.Helper()
	var factory ExtractorFactory
	if extractor != nil {
		factory = func(string) (SkillExtractor, error) { return extractor, nil }
	}
	return NewWorker(WorkerOptions{
		Emitter:      broker.NewEmitter(pub, model.SourceScraper, slog.Default()),
		Site:         site,
		NewExtractor: factory,
		Config:       config.ScraperConfig{DataDir: t.TempDir()},
		Logger:       slog.Default(),
	})
}

func TestWorkerHappyPathMaxJobsTwo(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{
		pages: map[string][][]model.JobListing{
			"data engineer": {{listing("Data Engineer"), listing("Data Platform Engineer"), listing("Extra")}},
		},
		description: "Build pipelines with Python and SQL.",
	}
	worker := newTestWorker(t, pub, site, &stubExtractor{skills: []string{"Python", "SQL", "Python"}})

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-1",
		&model.ScrapeParameters{
			GoogleAPIKey: "key",
			JobTitles:    "data engineer",
			Location:     "Paris",
			TimeFilter:   model.TimeFilter1w,
			MaxJobs:      2,
		}))
	require.NoError(t, err)

	statusEvents := pub.EventsOn(broker.TopicJobStatusUpdates)
	require.Len(t, statusEvents, 3) // job_started + 2 progress

	assert.Equal(t, model.EventJobStarted, statusEvents[0].EventType)
	assert.Equal(t, "Initializing", statusEvents[0].Description)

	assert.Equal(t, 47.5, *statusEvents[1].Percentage)
	assert.Equal(t, "Processing job 1/2: Data Engineer", statusEvents[1].Description)
	assert.Equal(t, 90.0, *statusEvents[2].Percentage)

	handoffs := pub.EventsOn(broker.TopicDataProcessing)
	require.Len(t, handoffs, 1)
	assert.Equal(t, model.EventLoadingRequested, handoffs[0].EventType)

	// The file must exist before loading_requested went out; verify content.
	raw, err := os.ReadFile(handoffs[0].DataPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Data Engineer")
	assert.Contains(t, string(raw), "Python")
	// max_jobs stops collection: the third card is never written.
	assert.NotContains(t, string(raw), "Extra")
}

func TestWorkerKeepsPagingPastFilteredCards(t *testing.T) {
	// A full page where one card was dropped as incomplete comes back with
	// 24 kept listings but 25 raw cards; the next page must still be fetched.
	firstPage := make([]model.JobListing, 0, PageSize-1)
	for i := 0; i < PageSize-1; i++ {
		firstPage = append(firstPage, listing(fmt.Sprintf("Data Engineer %02d", i)))
	}
	secondPage := make([]model.JobListing, 0, PageSize)
	for i := 0; i < PageSize; i++ {
		secondPage = append(secondPage, listing(fmt.Sprintf("Platform Engineer %02d", i)))
	}

	pub := &brokertest.CapturePublisher{}
	site := &stubSite{
		pages: map[string][][]model.JobListing{"dev": {firstPage, secondPage}},
		cards: map[string][]int{"dev": {PageSize, PageSize}},
	}
	worker := newTestWorker(t, pub, site, nil)

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-9",
		&model.ScrapeParameters{JobTitles: "dev", Location: "Paris", MaxJobs: 30}))
	require.NoError(t, err)

	assert.Contains(t, site.starts, PageSize)

	handoffs := pub.EventsOn(broker.TopicDataProcessing)
	require.Len(t, handoffs, 1)
	raw, readErr := os.ReadFile(handoffs[0].DataPath)
	require.NoError(t, readErr)
	var written []model.JobListing
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Len(t, written, 30)
}

func TestWorkerStopsOnCardlessPage(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{
		pages: map[string][][]model.JobListing{"dev": {{listing("Dev")}}},
	}
	worker := newTestWorker(t, pub, site, nil)

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-10",
		&model.ScrapeParameters{JobTitles: "dev", Location: "Paris", MaxJobs: 10}))
	require.NoError(t, err)

	// The single-card page keeps pagination going; the empty follow-up page
	// ends the title.
	assert.Equal(t, []int{0, PageSize}, site.starts)
}

func TestWorkerValidationFailureEmitsDualPair(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	worker := newTestWorker(t, pub, &stubSite{}, nil)

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-2",
		&model.ScrapeParameters{JobTitles: "", Location: "Paris", MaxJobs: 1}))
	require.NoError(t, err)

	failures := pub.EventsOn(broker.TopicSystemNotifications)
	require.Len(t, failures, 1)
	assert.Equal(t, model.EventJobFailed, failures[0].EventType)
	assert.Contains(t, failures[0].ErrorDetails, "ValidationError")

	terminal := pub.EventsOn(broker.TopicJobStatusUpdates)
	require.Len(t, terminal, 1)
	assert.Equal(t, 0.0, *terminal[0].Percentage)
}

func TestWorkerNilParametersFail(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	worker := newTestWorker(t, pub, &stubSite{}, nil)

	require.NoError(t, worker.Handle(context.Background(), broker.TopicScrapingJobs,
		requestedEvent("job-3", nil)))
	require.Len(t, pub.EventsOn(broker.TopicSystemNotifications), 1)
}

func TestWorkerPageErrorContinuesToNextTitle(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{
		pages: map[string][][]model.JobListing{
			// First title has no pages (SearchPage returns empty); second yields one.
			"backend": {{listing("Backend Dev")}},
		},
	}
	worker := newTestWorker(t, pub, site, nil)

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-4",
		&model.ScrapeParameters{JobTitles: "frontend, backend", Location: "Paris", MaxJobs: 1}))
	require.NoError(t, err)

	handoffs := pub.EventsOn(broker.TopicDataProcessing)
	require.Len(t, handoffs, 1)
	raw, readErr := os.ReadFile(handoffs[0].DataPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), "Backend Dev")
}

func TestWorkerAllPagesFailStillHandsOffEmptyFile(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{pageErr: apperrors.External("status 429")}
	worker := newTestWorker(t, pub, site, nil)

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-5",
		&model.ScrapeParameters{JobTitles: "dev", Location: "Paris", MaxJobs: 3}))
	require.NoError(t, err)

	// Page failures are per-title; the job itself still completes its
	// hand-off with an empty array for the loader to finalize.
	handoffs := pub.EventsOn(broker.TopicDataProcessing)
	require.Len(t, handoffs, 1)
	raw, readErr := os.ReadFile(handoffs[0].DataPath)
	require.NoError(t, readErr)
	assert.JSONEq(t, "[]", string(raw))
	assert.Empty(t, pub.EventsOn(broker.TopicSystemNotifications))
}

func TestWorkerHandoffPublishFailureFailsJob(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{pages: map[string][][]model.JobListing{"dev": {{listing("Dev")}}}}
	worker := newTestWorker(t, pub, site, nil)

	// Fail only after the status events: prime the error just before handoff
	// is impossible with a single switch, so fail everything and check that
	// no handoff event was recorded and Handle still returns nil.
	pub.PublishErr = apperrors.Broker("down")
	require.NoError(t, worker.Handle(context.Background(), broker.TopicScrapingJobs,
		requestedEvent("job-6", &model.ScrapeParameters{JobTitles: "dev", Location: "Paris", MaxJobs: 1})))
	assert.Empty(t, pub.EventsOn(broker.TopicDataProcessing))
}

func TestWorkerSkillExtractionFailureDegrades(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	site := &stubSite{
		pages:       map[string][][]model.JobListing{"dev": {{listing("Dev")}}},
		description: "Ship Go services.",
	}
	worker := newTestWorker(t, pub, site, &stubExtractor{err: apperrors.External("llm 500")})

	err := worker.Handle(context.Background(), broker.TopicScrapingJobs, requestedEvent("job-7",
		&model.ScrapeParameters{GoogleAPIKey: "key", JobTitles: "dev", Location: "Paris", MaxJobs: 1}))
	require.NoError(t, err)

	handoffs := pub.EventsOn(broker.TopicDataProcessing)
	require.Len(t, handoffs, 1)
	raw, readErr := os.ReadFile(handoffs[0].DataPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), `"extracted_skills": []`)
	assert.Empty(t, pub.EventsOn(broker.TopicSystemNotifications))
}

func TestWorkerIgnoresForeignEventTypes(t *testing.T) {
	pub := &brokertest.CapturePublisher{}
	worker := newTestWorker(t, pub, &stubSite{}, nil)

	ev := model.NewJobEvent("job-8", model.EventJobProgress, model.SourceScraper)
	require.NoError(t, worker.Handle(context.Background(), broker.TopicScrapingJobs, ev))
	assert.Empty(t, pub.Events())
}

func TestResultFilePathNamespacing(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		jobID := fmt.Sprintf("job-%d", i)
		path, err := WriteResultFile(dir, jobID, []model.JobListing{listing("Dev")})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, jobID+"_jobs.json"), path)
	}
}
