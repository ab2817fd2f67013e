// Package metrics defines the standardised metric emissions for the job
// pipeline: consumed event counts, terminal job outcomes, and consumer
// handler failures.
package metrics

import (
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/domain/model"
	obserrors "github.com/jobsift/jobsift/internal/observability/errors"
	"github.com/jobsift/jobsift/internal/observability/statsd"
	"github.com/jobsift/jobsift/internal/status"
)

// Result values for the pipeline.jobs counter.
const (
	ResultComplete = "complete"
	ResultFailed   = "failed"
)

// EmitStatusEvent counts one event consumed from a status or notification
// topic.
func EmitStatusEvent(sink statsd.Sink, ev model.JobEvent) {
	if sink == nil {
		return
	}
	sink.Count("pipeline.events", 1, map[string]string{
		"event_type": string(ev.EventType),
		"source":     string(ev.Source),
	})
}

// EmitJobTerminal records a job reaching COMPLETE or FAILED, with the
// end-to-end duration measured from the initial trigger. Entries that never
// passed through the trigger handler have no requested_at and emit no timing.
func EmitJobTerminal(sink statsd.Sink, entry status.Entry) {
	if sink == nil || !entry.Terminal() {
		return
	}

	result := ResultComplete
	tags := map[string]string{"result": result}
	if entry.Status == status.StateFailed {
		tags["result"] = ResultFailed
		if class := ErrorClassFromDetails(entry.ErrorDetails); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("pipeline.jobs", 1, tags)

	if entry.RequestedAt > 0 && entry.LastUpdate >= entry.RequestedAt {
		elapsed := time.Duration((entry.LastUpdate - entry.RequestedAt) * float64(time.Second))
		sink.Timing("pipeline.job_duration", elapsed, map[string]string{"result": tags["result"]})
	}
}

// EmitConsumerFailure counts a handler error surfaced by a topic consumer.
func EmitConsumerFailure(sink statsd.Sink, topic string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"topic": topic}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
	sink.Count("consumer.failures", 1, tags)
}

// ErrorClassFromDetails extracts the exception-kind prefix from a published
// "<Kind> - <message>" error_details string.
func ErrorClassFromDetails(details string) string {
	kind, _, found := strings.Cut(details, " - ")
	if !found {
		return ""
	}
	return strings.TrimSpace(kind)
}
