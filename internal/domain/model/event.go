// Package model defines the core data types shared by the gateway, the
// scraper worker, and the loader worker: broker event payloads, scraped
// listing records, and persisted job rows.
package model

import (
	"math"
	"strings"
	"time"

	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// EventType enumerates the broker event vocabulary.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type EventType string

const (
	// EventJobRequested is published by the gateway to start a pipeline run.
	EventJobRequested EventType = "job_requested"
	// EventJobStarted marks the beginning of scraping for a job.
	EventJobStarted EventType = "job_started"
	// EventJobProgress reports scraper progress in the [0,90] band.
	EventJobProgress EventType = "job_progress"
	// EventLoadingRequested hands a finished result file to the loader.
	EventLoadingRequested EventType = "loading_requested"
	// EventLoadingProgress reports loader progress in the [90,100] band.
	EventLoadingProgress EventType = "loading_progress"
	// EventLoadingComplete marks a successfully finished pipeline run.
	EventLoadingComplete EventType = "loading_complete"
	// EventJobFailed reports a terminal failure from any stage.
	EventJobFailed EventType = "job_failed"
	// EventSystemWarning reports a non-fatal condition (e.g. result file cleanup failure).
	EventSystemWarning EventType = "system_warning"
)

// Valid returns true if the EventType is one of the known events.
func (t EventType) Valid() bool {
	switch t {
	case EventJobRequested, EventJobStarted, EventJobProgress,
		EventLoadingRequested, EventLoadingProgress, EventLoadingComplete,
		EventJobFailed, EventSystemWarning:
		return true
	}
	return false
}

// Source identifies the producing role of an event.
type Source string

const (
	// SourceGateway marks events produced by the HTTP gateway.
	SourceGateway Source = "gateway"
	// SourceScraper marks events produced by the scraping worker.
	SourceScraper Source = "scraper"
	// SourceLoader marks events produced by the loading worker.
	SourceLoader Source = "loader"
)

// JobEvent is the JSON payload carried on every broker topic. JobID,
// EventType, Source, and Timestamp are mandatory on every event; the
// remaining fields depend on the event type.
type JobEvent struct {
	JobID     string    `json:"job_id"`
	EventType EventType `json:"event_type"`
	Source    Source    `json:"source"`
	// Timestamp is floating seconds since the Unix epoch.
	Timestamp float64 `json:"timestamp"`

	Parameters   *ScrapeParameters `json:"parameters,omitempty"`
	Percentage   *float64          `json:"percentage,omitempty"`
	Description  string            `json:"description,omitempty"`
	ErrorDetails string            `json:"error_details,omitempty"`
	DataPath     string            `json:"data_path,omitempty"`
}

// NewJobEvent builds an event stamped with the current time.
func NewJobEvent(jobID string, eventType EventType, source Source) JobEvent {
	return JobEvent{
		JobID:     jobID,
		EventType: eventType,
		Source:    source,
		Timestamp: EpochSeconds(time.Now()),
	}
}

// EpochSeconds converts a time to the floating-seconds representation used
// on the wire.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// RoundPct clamps v into [0,100] and rounds it to two decimals.
func RoundPct(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*100) / 100
}

// Pct returns a pointer to the clamped, rounded percentage. Event payloads
// use a pointer so "no percentage" is distinguishable from 0.
func Pct(v float64) *float64 {
	p := RoundPct(v)
	return &p
}

// TimeFilter values accepted on a scrape request.
const (
	TimeFilter24h  = "24h"
	TimeFilter1w   = "1w"
	TimeFilter1m   = "1m"
	TimeFilterNone = ""
)

// ScrapeParameters is the job configuration carried in the initial
// job_requested payload. Field names follow the wire contract, including
// the upper-case API key the gateway injects server-side.
type ScrapeParameters struct {
	GoogleAPIKey string `json:"GOOGLE_API_KEY"`
	JobTitles    string `json:"job_titles"`
	Location     string `json:"location"`
	TimeFilter   string `json:"time_filter,omitempty"`
	MaxJobs      int    `json:"max_jobs"`
}

// Validate checks the user-controlled fields. The API key is deliberately
// not validated here: an empty key only disables skill extraction.
func (p *ScrapeParameters) Validate() error {
	if p == nil {
		return apperrors.Validation("parameters are required")
	}
	if len(p.Titles()) == 0 {
		return apperrors.ValidationField("job_titles", "job_titles must contain at least one title")
	}
	if strings.TrimSpace(p.Location) == "" {
		return apperrors.ValidationField("location", "location must not be empty")
	}
	switch p.TimeFilter {
	case TimeFilterNone, TimeFilter24h, TimeFilter1w, TimeFilter1m:
	default:
		return apperrors.ValidationField("time_filter", "time_filter must be one of 24h, 1w, 1m")
	}
	if p.MaxJobs <= 0 {
		return apperrors.ValidationField("max_jobs", "max_jobs must be a positive integer")
	}
	return nil
}

// Titles splits the comma-delimited title list, trimming whitespace and
// dropping empty elements.
func (p *ScrapeParameters) Titles() []string {
	if p == nil {
		return nil
	}
	parts := strings.Split(p.JobTitles, ",")
	titles := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}
