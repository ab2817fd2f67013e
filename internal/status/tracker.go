// Package status holds the gateway's in-memory job-state map: the
// authoritative store of per-job pipeline state, fed by the HTTP trigger
// handler and the background status consumer, and snapshotted for push
// channel broadcasts.
package status

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
)

// Job states as seen by API and push-channel clients. The initial
// "requested" state is set by the HTTP handler; the uppercase states come
// from broker events.
const (
	StateRequested = "requested"
	StateRunning   = "RUNNING"
	StateLoading   = "LOADING DATA"
	StateComplete  = "COMPLETE"
	StateFailed    = "FAILED"
)

// Entry is the tracked state of one job.
type Entry struct {
	JobID          string          `json:"job_id"`
	Status         string          `json:"status,omitempty"`
	Stage          string          `json:"stage,omitempty"`
	Percentage     *float64        `json:"percentage,omitempty"`
	LastEventType  model.EventType `json:"last_event_type,omitempty"`
	Source         model.Source    `json:"source,omitempty"`
	RequestedAt    float64         `json:"requested_at,omitempty"`
	LastUpdate     float64         `json:"last_update,omitempty"`
	EventTimestamp float64         `json:"event_timestamp,omitempty"`
	ErrorDetails   string          `json:"error_details,omitempty"`
	Details        map[string]any  `json:"details,omitempty"`
}

// Terminal reports whether the entry reached a final state. Terminal
// entries only accept informational updates.
func (e *Entry) Terminal() bool {
	return e.Status == StateComplete || e.Status == StateFailed
}

// clone returns a deep copy safe to hand outside the lock.
func (e *Entry) clone() Entry {
	out := *e
	if e.Percentage != nil {
		p := *e.Percentage
		out.Percentage = &p
	}
	if e.Details != nil {
		d := make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			d[k] = v
		}
		out.Details = d
	}
	return out
}

// BroadcastData returns the push-channel payload for this entry: only the
// non-empty subset of status, stage, percentage, error_details, last_update,
// last_event_type.
func (e *Entry) BroadcastData() map[string]any {
	data := make(map[string]any, 6)
	if e.Status != "" {
		data["status"] = e.Status
	}
	if e.Stage != "" {
		data["stage"] = e.Stage
	}
	if e.Percentage != nil {
		data["percentage"] = *e.Percentage
	}
	if e.ErrorDetails != "" {
		data["error_details"] = e.ErrorDetails
	}
	if e.LastUpdate != 0 {
		data["last_update"] = e.LastUpdate
	}
	if e.LastEventType != "" {
		data["last_event_type"] = string(e.LastEventType)
	}
	return data
}

// Tracker is the mutex-guarded job-state map. Reads by HTTP handlers and
// writes by the consumer goroutine are serialized on one lock. Entries are
// never evicted within a process lifetime; memory grows with job count,
// which is accepted for a single-process gateway.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]*Entry
	logger *slog.Logger
}

// NewTracker builds an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		jobs:   make(map[string]*Entry),
		logger: logger.With("component", "status_tracker"),
	}
}

// Record registers a freshly triggered job in the requested state. Called by
// the trigger handler before the job_requested event is acknowledged to the
// client.
func (t *Tracker) Record(jobID string, details map[string]any) Entry {
	now := model.EpochSeconds(time.Now())

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entryLocked(jobID)
	entry.Status = StateRequested
	entry.RequestedAt = now
	entry.LastUpdate = now
	entry.Details = details
	return entry.clone()
}

// Get returns a copy of the entry for jobID.
func (t *Tracker) Get(jobID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.jobs[jobID]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Snapshot returns a copy of the whole map for initial_state messages.
func (t *Tracker) Snapshot() map[string]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Entry, len(t.jobs))
	for id, entry := range t.jobs {
		out[id] = entry.clone()
	}
	return out
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Apply folds one consumed event into the map and returns the post-update
// snapshot of the affected entry. changed is false for unknown event types
// and for state-bearing fields of terminal entries; informational fields
// (timestamps, last event) still update on terminal entries so clients can
// see late event traffic.
func (t *Tracker) Apply(topic string, ev model.JobEvent) (Entry, bool) {
	if ev.JobID == "" {
		t.logger.Warn("event without job_id ignored", "topic", topic, "event_type", ev.EventType)
		return Entry{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entryLocked(ev.JobID)
	changed := false

	switch topic {
	case broker.TopicJobStatusUpdates:
		changed = t.applyStatusLocked(entry, ev)
	case broker.TopicSystemNotifications:
		changed = t.applyNotificationLocked(entry, ev)
	default:
		t.logger.Warn("event from unexpected topic ignored", "topic", topic, "job_id", ev.JobID)
		return Entry{}, false
	}

	if !changed {
		return Entry{}, false
	}

	entry.LastUpdate = model.EpochSeconds(time.Now())
	entry.EventTimestamp = ev.Timestamp
	entry.LastEventType = ev.EventType
	entry.Source = ev.Source
	return entry.clone(), true
}

// entryLocked finds or creates the entry for jobID. An entry exists iff the
// gateway has seen the initial POST or any broker event bearing that job ID.
func (t *Tracker) entryLocked(jobID string) *Entry {
	entry, ok := t.jobs[jobID]
	if !ok {
		entry = &Entry{JobID: jobID}
		t.jobs[jobID] = entry
	}
	return entry
}

func (t *Tracker) applyStatusLocked(entry *Entry, ev model.JobEvent) bool {
	if entry.Terminal() {
		// Late status traffic after COMPLETE/FAILED: keep the terminal state,
		// refresh only informational fields.
		return ev.EventType == model.EventJobStarted ||
			ev.EventType == model.EventJobProgress ||
			ev.EventType == model.EventLoadingProgress ||
			ev.EventType == model.EventLoadingComplete
	}

	switch ev.EventType {
	case model.EventJobStarted:
		entry.Status = StateRunning
		entry.Stage = strings.ToUpper(string(ev.Source))
		entry.Percentage = model.Pct(0)
	case model.EventJobProgress:
		entry.Status = StateRunning
		entry.Stage = strings.ToUpper(string(ev.Source))
		if ev.Percentage != nil {
			entry.Percentage = model.Pct(*ev.Percentage)
		}
		// No percentage on the event keeps the prior value.
	case model.EventLoadingProgress:
		entry.Status = StateLoading
		entry.Stage = StateLoading
		if ev.Percentage != nil {
			entry.Percentage = model.Pct(*ev.Percentage)
		}
	case model.EventLoadingComplete:
		entry.Status = StateComplete
		entry.Stage = StateLoading
		entry.Percentage = model.Pct(100)
	default:
		t.logger.Warn("unhandled event type on status topic",
			"event_type", ev.EventType, "job_id", ev.JobID)
		return false
	}
	return true
}

func (t *Tracker) applyNotificationLocked(entry *Entry, ev model.JobEvent) bool {
	switch ev.EventType {
	case model.EventJobFailed:
		if entry.Terminal() {
			// First terminal state wins; record the details if none yet.
			if entry.ErrorDetails == "" && ev.ErrorDetails != "" {
				entry.ErrorDetails = ev.ErrorDetails
			}
			return true
		}
		entry.Status = StateFailed
		entry.Stage = strings.ToUpper(string(ev.Source))
		entry.ErrorDetails = ev.ErrorDetails
		if entry.ErrorDetails == "" {
			entry.ErrorDetails = "No details provided."
		}
		return true
	case model.EventSystemWarning:
		t.logger.Warn("system warning received",
			"job_id", ev.JobID, "description", ev.Description)
		return false
	default:
		t.logger.Warn("unhandled event type on notification topic",
			"event_type", ev.EventType, "job_id", ev.JobID)
		return false
	}
}
