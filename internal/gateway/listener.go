// Package gateway contains the background status listener that keeps the
// gateway's job-state map current: it consumes the status and notification
// topics, folds events into the tracker, pushes deltas to connected push
// clients, and fans failures out to metrics and alert sinks.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jobsift/jobsift/internal/domain/model"
	"github.com/jobsift/jobsift/internal/observability/metrics"
	"github.com/jobsift/jobsift/internal/observability/notify"
	"github.com/jobsift/jobsift/internal/observability/statsd"
	"github.com/jobsift/jobsift/internal/status"
)

// StatusBroadcaster pushes one job's delta to connected clients. *ws.Hub
// satisfies it.
type StatusBroadcaster interface {
	BroadcastStatus(jobID string, data map[string]any)
}

// ListenerOptions configures a status Listener. Broadcast, Metrics, and
// Notifier are all optional; a listener with none of them still maintains the
// tracker.
type ListenerOptions struct {
	Tracker   *status.Tracker
	Broadcast StatusBroadcaster
	Metrics   statsd.Sink
	Notifier  notify.Sink
	Logger    *slog.Logger
}

// Listener is the broker handler for the job-status-updates and
// system-notifications topics.
type Listener struct {
	tracker   *status.Tracker
	broadcast StatusBroadcaster
	metrics   statsd.Sink
	notifier  notify.Sink
	logger    *slog.Logger

	// mu guards terminalSeen, which dedupes terminal metrics and failure
	// notifications across redelivered events. Like the tracker itself, it
	// grows with job count and is never evicted.
	mu           sync.Mutex
	terminalSeen map[string]struct{}
}

// NewListener builds a status listener.
func NewListener(opts ListenerOptions) *Listener {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		tracker:      opts.Tracker,
		broadcast:    opts.Broadcast,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		logger:       logger.With("component", "status_listener"),
		terminalSeen: make(map[string]struct{}),
	}
}

// Handle folds one consumed event into the state map and propagates the
// resulting delta. It never returns an error: a status event that cannot be
// applied is logged and dropped rather than re-reported as a job failure.
func (l *Listener) Handle(ctx context.Context, topic string, ev model.JobEvent) error {
	metrics.EmitStatusEvent(l.metrics, ev)

	entry, changed := l.tracker.Apply(topic, ev)
	if !changed {
		return nil
	}

	if l.broadcast != nil {
		l.broadcast.BroadcastStatus(entry.JobID, entry.BroadcastData())
	}

	if entry.Terminal() && l.markTerminal(entry.JobID) {
		metrics.EmitJobTerminal(l.metrics, entry)
		if entry.Status == status.StateFailed {
			l.notifyFailure(ctx, entry)
		}
	}
	return nil
}

// markTerminal records that jobID reached a terminal state and reports
// whether this is the first time.
func (l *Listener) markTerminal(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.terminalSeen[jobID]; seen {
		return false
	}
	l.terminalSeen[jobID] = struct{}{}
	return true
}

func (l *Listener) notifyFailure(ctx context.Context, entry status.Entry) {
	if l.notifier == nil {
		return
	}

	payload := notify.JobFailurePayload{
		JobID:      entry.JobID,
		Stage:      strings.ToLower(entry.Stage),
		Error:      entry.ErrorDetails,
		ErrorClass: metrics.ErrorClassFromDetails(entry.ErrorDetails),
		Severity:   notify.SeverityCritical,
		OccurredAt: epochToTime(entry.EventTimestamp),
		Metadata:   stringifyDetails(entry.Details),
	}

	if err := l.notifier.SendJobFailure(ctx, payload); err != nil {
		l.logger.ErrorContext(ctx, "failure notification not delivered",
			"job_id", entry.JobID, "error", err)
	}
}

func epochToTime(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(seconds*float64(time.Second))).UTC()
}

func stringifyDetails(details map[string]any) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = fmt.Sprint(v)
	}
	return out
}
