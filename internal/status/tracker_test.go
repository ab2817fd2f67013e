package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/domain/model"
)

func statusEvent(jobID string, et model.EventType, source model.Source, pct *float64) model.JobEvent {
	ev := model.NewJobEvent(jobID, et, source)
	ev.Percentage = pct
	return ev
}

func TestRecordCreatesRequestedEntry(t *testing.T) {
	tr := NewTracker(nil)
	entry := tr.Record("job-1", map[string]any{"location": "Paris"})

	assert.Equal(t, StateRequested, entry.Status)
	assert.NotZero(t, entry.RequestedAt)
	assert.Equal(t, "Paris", entry.Details["location"])

	got, ok := tr.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StateRequested, got.Status)
}

func TestApplyFullHappyPath(t *testing.T) {
	tr := NewTracker(nil)
	tr.Record("job-1", nil)

	steps := []struct {
		event      model.JobEvent
		wantStatus string
		wantStage  string
		wantPct    float64
	}{
		{statusEvent("job-1", model.EventJobStarted, model.SourceScraper, nil), StateRunning, "SCRAPER", 0},
		{statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(47.5)), StateRunning, "SCRAPER", 47.5},
		{statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(90)), StateRunning, "SCRAPER", 90},
		{statusEvent("job-1", model.EventLoadingProgress, model.SourceLoader, model.Pct(91)), StateLoading, StateLoading, 91},
		{statusEvent("job-1", model.EventLoadingProgress, model.SourceLoader, model.Pct(98)), StateLoading, StateLoading, 98},
		{statusEvent("job-1", model.EventLoadingComplete, model.SourceLoader, nil), StateComplete, StateLoading, 100},
	}

	for _, step := range steps {
		entry, changed := tr.Apply(broker.TopicJobStatusUpdates, step.event)
		require.True(t, changed, "event %s should change state", step.event.EventType)
		assert.Equal(t, step.wantStatus, entry.Status)
		assert.Equal(t, step.wantStage, entry.Stage)
		require.NotNil(t, entry.Percentage)
		assert.Equal(t, step.wantPct, *entry.Percentage)
		assert.Equal(t, step.event.EventType, entry.LastEventType)
	}
}

func TestApplyProgressWithoutPercentageKeepsPrior(t *testing.T) {
	tr := NewTracker(nil)
	tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(42)))

	entry, changed := tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobProgress, model.SourceScraper, nil))
	require.True(t, changed)
	require.NotNil(t, entry.Percentage)
	assert.Equal(t, 42.0, *entry.Percentage)
}

func TestApplyUnknownEventLeavesStateUnchanged(t *testing.T) {
	tr := NewTracker(nil)
	tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(10)))

	_, changed := tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventType("job_finished"), model.SourceScraper, nil))
	assert.False(t, changed)

	entry, ok := tr.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StateRunning, entry.Status)
	assert.Equal(t, 10.0, *entry.Percentage)
}

func TestApplyJobFailedSetsErrorDetails(t *testing.T) {
	tr := NewTracker(nil)
	ev := model.NewJobEvent("job-1", model.EventJobFailed, model.SourceLoader)
	ev.ErrorDetails = "ExternalServiceError - file missing"

	entry, changed := tr.Apply(broker.TopicSystemNotifications, ev)
	require.True(t, changed)
	assert.Equal(t, StateFailed, entry.Status)
	assert.Equal(t, "LOADER", entry.Stage)
	assert.Equal(t, "ExternalServiceError - file missing", entry.ErrorDetails)
}

func TestApplyJobFailedWithoutDetails(t *testing.T) {
	tr := NewTracker(nil)
	entry, changed := tr.Apply(broker.TopicSystemNotifications, model.NewJobEvent("job-1", model.EventJobFailed, model.SourceScraper))
	require.True(t, changed)
	assert.Equal(t, "No details provided.", entry.ErrorDetails)
}

func TestTerminalEntriesKeepState(t *testing.T) {
	tr := NewTracker(nil)
	tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventLoadingComplete, model.SourceLoader, nil))

	// A late progress event must not reopen the job or move the percentage.
	entry, changed := tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(50)))
	require.True(t, changed) // informational refresh still broadcasts
	assert.Equal(t, StateComplete, entry.Status)
	assert.Equal(t, 100.0, *entry.Percentage)
	assert.Equal(t, model.EventJobProgress, entry.LastEventType)
}

func TestApplyCreatesEntryForUnknownJob(t *testing.T) {
	tr := NewTracker(nil)
	entry, changed := tr.Apply(broker.TopicJobStatusUpdates, statusEvent("surprise", model.EventJobStarted, model.SourceScraper, nil))
	require.True(t, changed)
	assert.Equal(t, StateRunning, entry.Status)
	assert.Equal(t, 1, tr.Len())
}

func TestApplyIgnoresMissingJobID(t *testing.T) {
	tr := NewTracker(nil)
	_, changed := tr.Apply(broker.TopicJobStatusUpdates, model.JobEvent{EventType: model.EventJobStarted})
	assert.False(t, changed)
	assert.Zero(t, tr.Len())
}

func TestSystemWarningDoesNotMutate(t *testing.T) {
	tr := NewTracker(nil)
	tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobProgress, model.SourceScraper, model.Pct(20)))

	ev := model.NewJobEvent("job-1", model.EventSystemWarning, model.SourceLoader)
	ev.Description = "could not delete file"
	_, changed := tr.Apply(broker.TopicSystemNotifications, ev)
	assert.False(t, changed)

	entry, _ := tr.Get("job-1")
	assert.Equal(t, StateRunning, entry.Status)
}

func TestBroadcastDataOmitsEmptyFields(t *testing.T) {
	tr := NewTracker(nil)
	entry, _ := tr.Apply(broker.TopicJobStatusUpdates, statusEvent("job-1", model.EventJobStarted, model.SourceScraper, nil))

	data := entry.BroadcastData()
	assert.Contains(t, data, "status")
	assert.Contains(t, data, "stage")
	assert.Contains(t, data, "percentage")
	assert.Contains(t, data, "last_update")
	assert.Contains(t, data, "last_event_type")
	assert.NotContains(t, data, "error_details")
	// Only the six broadcast keys may ever appear.
	for key := range data {
		assert.Contains(t, []string{"status", "stage", "percentage", "error_details", "last_update", "last_event_type"}, key)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(nil)
	tr.Record("job-1", map[string]any{"location": "Paris"})

	snap := tr.Snapshot()
	snap["job-1"].Details["mutated"] = true

	entry, _ := tr.Get("job-1")
	assert.NotContains(t, entry.Details, "mutated")
}
