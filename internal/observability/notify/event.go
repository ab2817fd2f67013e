// Package notify defines the failure-notification contract consumed by alert
// sinks such as the Slack webhook client.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload is the canonical data emitted when a pipeline job fails.
type JobFailurePayload struct {
	JobID string
	// Stage is the pipeline stage that reported the failure, e.g. "scraper"
	// or "loader".
	Stage      string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	// Metadata carries the job's trigger parameters (titles, location) when
	// known.
	Metadata map[string]string
}

// Sink is a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
