package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

func tsAt(t time.Time) string {
	return t.UTC().Format(model.TimeFormat)
}

func TestHandleProgressEventDiscardsPreStartupEvents(t *testing.T) {
	a := New(20)
	stale := model.ProgressEvent{Event: model.EventJobReceived, JobID: "job-1", Timestamp: tsAt(time.Now().Add(-time.Hour))}
	assert.False(t, a.HandleProgressEvent(stale), "expected pre-startup event to be discarded")
	_, ok := a.Task("job-1")
	assert.False(t, ok, "expected no task to be created from a discarded event")
}

func TestHandleProgressEventTerminalStatusSurvivesLateEvents(t *testing.T) {
	a := New(20)
	now := time.Now()
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventJobReceived, JobID: "job-1", Timestamp: tsAt(now)})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskCompleted, TaskID: "job-1", Timestamp: tsAt(now.Add(time.Second))})

	task, ok := a.Task("job-1")
	require.True(t, ok)
	require.Equal(t, model.TaskCompleted, task.Status)

	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventJobReceived, JobID: "job-1", Timestamp: tsAt(now.Add(2 * time.Second))})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "job-1", Timestamp: tsAt(now.Add(3 * time.Second))})

	task, ok = a.Task("job-1")
	require.True(t, ok)
	assert.Equal(t, model.TaskCompleted, task.Status, "completed task must not be reverted by a late job_received/task_started event")
}

func TestHandleProgressEventCreatesTaskOnJobReceived(t *testing.T) {
	a := New(20)
	evt := model.ProgressEvent{
		Event:     model.EventJobReceived,
		JobID:     "job-1",
		SeedURLs:  []string{"http://a.test/", "http://b.test/"},
		Timestamp: tsAt(time.Now()),
	}
	require.True(t, a.HandleProgressEvent(evt), "expected event to be applied")
	task, ok := a.Task("job-1")
	require.True(t, ok, "expected task to exist")
	assert.Equal(t, model.TaskSubmitted, task.Status)
}

func TestHandleProgressEventCoalescesDuplicateSeedSubmission(t *testing.T) {
	a := New(20)
	now := tsAt(time.Now())

	first := model.ProgressEvent{Event: model.EventJobReceived, JobID: "job-1", SeedURLs: []string{"http://a.test/", "http://b.test/"}, Timestamp: now}
	a.HandleProgressEvent(first)

	dup := model.ProgressEvent{Event: model.EventJobReceived, JobID: "job-2", SeedURLs: []string{"http://b.test/", "http://a.test/"}, Timestamp: now}
	a.HandleProgressEvent(dup)

	_, ok := a.Task("job-2")
	assert.False(t, ok, "expected duplicate submission to be redirected to the existing task id, not create job-2")
	task, _ := a.Task("job-1")
	assert.Len(t, task.Timeline, 2, "expected both events recorded against job-1")
}

func TestHandleProgressEventURLCrawledAndIndexed(t *testing.T) {
	a := New(20)
	now := tsAt(time.Now())

	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "t1", Timestamp: now})
	a.HandleProgressEvent(model.ProgressEvent{Event: "crawled", TaskID: "t1", URL: "http://a.test/", Timestamp: now})
	a.HandleProgressEvent(model.ProgressEvent{Event: "indexed", TaskID: "t1", URL: "http://a.test/", Timestamp: now})

	task, ok := a.Task("t1")
	require.True(t, ok, "expected task t1 to exist")
	assert.Equal(t, 1, task.CrawledURLs)
	assert.Equal(t, 1, task.IndexedURLs)
	assert.Equal(t, model.TaskInProgress, task.Status)
}

func TestSummaryClampsIndexedToCrawled(t *testing.T) {
	a := New(20)
	now := tsAt(time.Now())
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "t1", Timestamp: now})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventURLCrawled, TaskID: "t1", URL: "http://a.test/1", Timestamp: now})
	// Indexed twice without a matching crawl, simulating a race; summary must clamp.
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventURLIndexed, TaskID: "t1", URL: "http://a.test/1", Timestamp: now})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventURLIndexed, TaskID: "t1", URL: "http://a.test/2", Timestamp: now})

	summary := a.Summary()
	assert.Equal(t, summary.URLsCrawled, summary.URLsIndexed, "expected indexed clamped to crawled")
}

func TestEnforceMaxActiveAutoCompletesOldest(t *testing.T) {
	a := New(1)
	now := time.Now()

	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "old", Timestamp: tsAt(now)})
	// Events stamped before the aggregator started are discarded, so age
	// "old" by moving its LastUpdate back instead of its event timestamp.
	a.mu.Lock()
	a.tasks["old"].LastUpdate = tsAt(now.Add(-time.Minute))
	a.mu.Unlock()
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "new", Timestamp: tsAt(now)})

	old, _ := a.Task("old")
	newTask, _ := a.Task("new")

	assert.Equal(t, model.TaskCompleted, old.Status, "expected oldest active task auto-completed")
	assert.True(t, old.AutoCompleted)
	assert.Equal(t, model.TaskInProgress, newTask.Status, "expected newest task to remain active")
}

func TestDetectStallsTransitionsSubmittedAndInProgress(t *testing.T) {
	a := New(20)
	now := time.Now()

	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventJobReceived, JobID: "stalled-submitted", Timestamp: tsAt(now)})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "stalled-progress", Timestamp: tsAt(now)})
	a.HandleProgressEvent(model.ProgressEvent{Event: model.EventTaskStarted, TaskID: "slow-progress", Timestamp: tsAt(now)})

	// Events stamped before startup are discarded and HandleProgressEvent
	// sets LastUpdate to "now" each time, so force LastUpdate back in time
	// to simulate true staleness for this periodic check.
	a.mu.Lock()
	a.tasks["stalled-submitted"].LastUpdate = tsAt(now.Add(-200 * time.Second))
	a.tasks["stalled-progress"].LastUpdate = tsAt(now.Add(-700 * time.Second))
	a.tasks["slow-progress"].LastUpdate = tsAt(now.Add(-200 * time.Second))
	a.mu.Unlock()

	a.DetectStalls(now)

	submitted, _ := a.Task("stalled-submitted")
	assert.Equal(t, model.TaskFailed, submitted.Status, "expected stalled submitted task to fail")

	progress, _ := a.Task("stalled-progress")
	assert.Equal(t, model.TaskFailed, progress.Status, "expected long-stalled in-progress task to fail")

	slow, _ := a.Task("slow-progress")
	assert.Equal(t, "slow_progress", slow.Warning)
	assert.Equal(t, model.TaskInProgress, slow.Status, "expected warned task to remain in_progress")
}

func TestDetectHealthStalenessMarksOffline(t *testing.T) {
	a := New(20)
	now := time.Now()

	a.HandleHealthEvent(model.HealthEvent{NodeType: "crawler", Hostname: "h1", Timestamp: tsAt(now)})
	a.mu.Lock()
	a.health["crawler"].LastCheck = tsAt(now.Add(-200 * time.Second))
	a.mu.Unlock()

	a.DetectHealthStaleness(now)

	health := a.Health()
	assert.Equal(t, model.StatusOffline, health["crawler"].Status, "expected stale heartbeat to mark offline")
}
