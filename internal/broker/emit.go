package broker

import (
	"context"
	"log/slog"

	"github.com/jobsift/jobsift/internal/domain/model"
	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// Emitter wraps a Publisher with the status-reporting vocabulary the workers
// share. Publish failures are logged and swallowed: a worker must never die
// because a progress update could not be delivered.
type Emitter struct {
	pub    Publisher
	source model.Source
	logger *slog.Logger
}

// NewEmitter builds an emitter for one producing role.
func NewEmitter(pub Publisher, source model.Source, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, source: source, logger: logger}
}

// JobStarted reports the beginning of work at zero percent.
func (e *Emitter) JobStarted(ctx context.Context, jobID, description string) {
	ev := model.NewJobEvent(jobID, model.EventJobStarted, e.source)
	ev.Percentage = model.Pct(0)
	ev.Description = description
	e.send(ctx, TopicJobStatusUpdates, ev)
}

// Progress reports scraper-band progress with a descriptive label.
func (e *Emitter) Progress(ctx context.Context, jobID string, pct float64, description string) {
	ev := model.NewJobEvent(jobID, model.EventJobProgress, e.source)
	ev.Percentage = model.Pct(pct)
	ev.Description = description
	e.send(ctx, TopicJobStatusUpdates, ev)
}

// LoadingProgress reports loader-band progress.
func (e *Emitter) LoadingProgress(ctx context.Context, jobID string, pct float64, description string) {
	ev := model.NewJobEvent(jobID, model.EventLoadingProgress, e.source)
	ev.Percentage = model.Pct(pct)
	ev.Description = description
	e.send(ctx, TopicJobStatusUpdates, ev)
}

// LoadingComplete reports the terminal success at one hundred percent.
func (e *Emitter) LoadingComplete(ctx context.Context, jobID, description string) {
	ev := model.NewJobEvent(jobID, model.EventLoadingComplete, e.source)
	ev.Percentage = model.Pct(100)
	ev.Description = description
	e.send(ctx, TopicJobStatusUpdates, ev)
}

// LoadingRequested hands the result file at dataPath to the loader. Unlike
// the status emissions this error is surfaced: the hand-off is the one
// publish the scraper cannot afford to lose silently.
func (e *Emitter) LoadingRequested(ctx context.Context, jobID, dataPath string) error {
	ev := model.NewJobEvent(jobID, model.EventLoadingRequested, e.source)
	ev.DataPath = dataPath
	return e.pub.Publish(ctx, TopicDataProcessing, ev)
}

// SystemWarning reports a non-fatal condition on the notification topic.
func (e *Emitter) SystemWarning(ctx context.Context, jobID, description string) {
	ev := model.NewJobEvent(jobID, model.EventSystemWarning, e.source)
	ev.Description = description
	e.send(ctx, TopicSystemNotifications, ev)
}

// FailJob publishes the dual failure pair: a job_failed on the notification
// topic and a terminal job_progress at terminalPct on the status topic, so
// the gateway state machine converges to FAILED regardless of which channel
// a client reads.
func (e *Emitter) FailJob(ctx context.Context, jobID string, failErr error, terminalPct float64) {
	details := apperrors.Details(failErr)

	failed := model.NewJobEvent(jobID, model.EventJobFailed, e.source)
	failed.ErrorDetails = details
	e.send(ctx, TopicSystemNotifications, failed)

	terminal := model.NewJobEvent(jobID, model.EventJobProgress, e.source)
	terminal.Percentage = model.Pct(terminalPct)
	terminal.Description = "Failed: " + details
	e.send(ctx, TopicJobStatusUpdates, terminal)
}

func (e *Emitter) send(ctx context.Context, topic string, ev model.JobEvent) {
	if err := e.pub.Publish(ctx, topic, ev); err != nil {
		e.logger.ErrorContext(ctx, "failed to emit event",
			"topic", topic,
			"event_type", ev.EventType,
			"job_id", ev.JobID,
			"error", err,
		)
	}
}
