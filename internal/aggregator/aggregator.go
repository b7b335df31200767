// Package aggregator merges the progress and health streams into live
// per-task and per-component state, exposed via a read API (spec §4.4).
package aggregator

import (
	"sync"
	"time"

	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

// Bounded-list sizing, spec §4.4 "Bounded memory".
const (
	ListCap      = 100
	KeepFirst    = 10
	KeepLast     = 40
)

// Stall and health-staleness thresholds, spec §4.4.
const (
	StallSubmittedSeconds  = 120
	StallInProgressSeconds = 600
	WarningSeconds         = 180
	HealthStaleSeconds     = 120
)

// Aggregator is the in-memory task/health state machine. All exported
// methods are safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	startupTime time.Time
	maxActive   int

	tasks    map[string]*model.TaskState
	seedKeys map[string]string // SeedKey -> task id, spec §4.4 duplicate-submission coalescing

	health map[string]*model.ComponentHealth
}

// New creates an Aggregator whose startup filter discards any event
// timestamped before now, and whose active-task set is capped at
// maxActiveTasks.
func New(maxActiveTasks int) *Aggregator {
	return &Aggregator{
		startupTime: time.Now().UTC(),
		maxActive:   maxActiveTasks,
		tasks:       make(map[string]*model.TaskState),
		seedKeys:    make(map[string]string),
		health:      make(map[string]*model.ComponentHealth),
	}
}

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(model.TimeFormat, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HandleProgressEvent applies evt to task state, per spec §4.4's
// per-event handling table. It returns false if the event was discarded
// by the startup filter.
func (a *Aggregator) HandleProgressEvent(evt model.ProgressEvent) bool {
	evt.Event = model.CanonicalEventName(evt.Event)

	if ts, ok := parseTimestamp(evt.Timestamp); ok && ts.Before(a.startupTime) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	taskID := evt.TaskID
	if taskID == "" {
		taskID = evt.JobID
	}
	if taskID == "" {
		return false
	}

	if evt.Event == model.EventJobReceived && len(evt.SeedURLs) > 0 {
		key := model.SeedKey(evt.SeedURLs)
		if existing, ok := a.seedKeys[key]; ok {
			taskID = existing
		} else {
			a.seedKeys[key] = taskID
		}
	}

	task, exists := a.tasks[taskID]
	if !exists {
		status := model.TaskInProgress
		if evt.Event == model.EventJobReceived {
			status = model.TaskSubmitted
		}
		task = &model.TaskState{
			TaskID: taskID,
			Status: status,
		}
		a.tasks[taskID] = task
	}

	a.applyEvent(task, evt)
	task.LastUpdate = model.NowISO()

	if !exists {
		a.enforceMaxActive()
	}

	return true
}

func (a *Aggregator) applyEvent(task *model.TaskState, evt model.ProgressEvent) {
	task.Timeline = appendBounded(task.Timeline, model.TimelineEntry{Event: evt.Event, Timestamp: evt.Timestamp})

	switch evt.Event {
	case model.EventJobReceived:
		if !task.Terminal() {
			task.Status = model.TaskSubmitted
		}
		task.SeedURLs = evt.SeedURLs
		task.TotalDepth = evt.Depth
		task.DomainRestriction = evt.DomainRestriction
		if task.StartTime == "" {
			task.StartTime = evt.Timestamp
		}

	case model.EventTaskStarted:
		if !task.Terminal() {
			task.Status = model.TaskInProgress
		}
		if len(evt.SeedURLs) > 0 {
			task.SeedURLs = evt.SeedURLs
		}
		task.TotalDepth = evt.Depth
		task.DomainRestriction = evt.DomainRestriction
		task.Continuations = 0

	case model.EventTaskContinuation:
		task.Continuations++
		task.Continuation = append(task.Continuation, model.ContinuationDetail{
			Timestamp: evt.Timestamp,
			URLCount:  evt.URLCount,
		})

	case model.EventURLCrawled:
		task.CrawledURLs++
		if evt.URL != "" && !containsString(task.CrawledURLList, evt.URL) {
			task.CrawledURLList = appendBoundedString(task.CrawledURLList, evt.URL)
		}
		if evt.Depth > task.CurrentDepth {
			task.CurrentDepth = evt.Depth
		}
		if task.Status == model.TaskSubmitted {
			task.Status = model.TaskInProgress
		}

	case model.EventURLIndexed:
		task.IndexedURLs++
		if evt.URL != "" && !containsString(task.IndexedURLList, evt.URL) {
			task.IndexedURLList = appendBoundedString(task.IndexedURLList, evt.URL)
		}
		if task.Status == model.TaskSubmitted {
			task.Status = model.TaskInProgress
		}

	case model.EventDepthComplete:
		if evt.Depth > task.DepthComplete {
			task.DepthComplete = evt.Depth
		}

	case model.EventTaskCompleted:
		task.Status = model.TaskCompleted
		task.EndTime = evt.Timestamp

	case model.EventTaskFailed:
		task.Status = model.TaskFailed
		task.EndTime = evt.Timestamp
		task.Error = evt.Error
		task.ErrorDetails = evt.Reason
	}
}

// enforceMaxActive auto-completes the oldest active (submitted or
// in_progress) tasks by last_update when the active set exceeds
// a.maxActive (spec §4.4 "MAX_ACTIVE_TASKS"). Caller must hold a.mu.
func (a *Aggregator) enforceMaxActive() {
	if a.maxActive <= 0 {
		return
	}

	active := make([]*model.TaskState, 0)
	for _, t := range a.tasks {
		if t.Status == model.TaskSubmitted || t.Status == model.TaskInProgress {
			active = append(active, t)
		}
	}
	if len(active) <= a.maxActive {
		return
	}

	sortByLastUpdate(active)
	excess := len(active) - a.maxActive
	for i := 0; i < excess; i++ {
		active[i].Status = model.TaskCompleted
		active[i].AutoCompleted = true
		active[i].EndTime = model.NowISO()
	}
}

func sortByLastUpdate(tasks []*model.TaskState) {
	before := func(i, j int) bool {
		ti, _ := parseTimestamp(tasks[i].LastUpdate)
		tj, _ := parseTimestamp(tasks[j].LastUpdate)
		return ti.Before(tj)
	}
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && before(j, j-1); j-- {
			tasks[j], tasks[j-1] = tasks[j-1], tasks[j]
		}
	}
}

// HandleHealthEvent records a component heartbeat (spec §4.4 "Health
// staleness").
func (a *Aggregator) HandleHealthEvent(evt model.HealthEvent) bool {
	if ts, ok := parseTimestamp(evt.Timestamp); ok && ts.Before(a.startupTime) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.health[evt.NodeType] = &model.ComponentHealth{
		Status:    model.StatusOnline,
		Hostname:  evt.Hostname,
		LastCheck: evt.Timestamp,
	}
	return true
}

// DetectStalls applies spec §4.4's periodic stall-detection rules.
func (a *Aggregator) DetectStalls(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, task := range a.tasks {
		last, ok := parseTimestamp(task.LastUpdate)
		if !ok {
			continue
		}
		idle := now.Sub(last)

		switch task.Status {
		case model.TaskSubmitted:
			if idle > StallSubmittedSeconds*time.Second {
				task.Status = model.TaskFailed
				task.Error = "stall"
				task.ErrorDetails = "no aggregator events for submitted task"
				task.EndTime = model.NowISO()
			}
		case model.TaskInProgress:
			if idle > StallInProgressSeconds*time.Second {
				task.Status = model.TaskFailed
				task.Error = "stall"
				task.ErrorDetails = "no aggregator events for in-progress task"
				task.EndTime = model.NowISO()
			} else if idle > WarningSeconds*time.Second {
				task.Warning = "slow_progress"
			}
		}
	}
}

// DetectHealthStaleness applies spec §4.4's periodic health-staleness
// rule.
func (a *Aggregator) DetectHealthStaleness(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, h := range a.health {
		last, ok := parseTimestamp(h.LastCheck)
		if !ok {
			continue
		}
		if now.Sub(last) > HealthStaleSeconds*time.Second {
			h.Status = model.StatusOffline
		}
	}
}

// Summary computes spec §4.4's system-wide counters, clamping any
// indexed_urls > crawled_urls down to crawled_urls before aggregating.
func (a *Aggregator) Summary() model.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s model.Summary
	for _, t := range a.tasks {
		indexed := t.IndexedURLs
		if indexed > t.CrawledURLs {
			indexed = t.CrawledURLs
		}

		switch t.Status {
		case model.TaskSubmitted, model.TaskInProgress:
			s.ActiveTasks++
		case model.TaskCompleted:
			s.CompletedTasks++
		case model.TaskFailed:
			s.FailedTasks++
		}
		s.URLsCrawled += t.CrawledURLs
		s.URLsIndexed += indexed
	}
	return s
}

// Task returns a copy of the task state for id, or false if unknown.
func (a *Aggregator) Task(id string) (model.TaskState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks[id]
	if !ok {
		return model.TaskState{}, false
	}
	return *t, true
}

// Tasks returns a copy of every tracked task, in no particular order (the
// /tasks read API sorts them by task id).
func (a *Aggregator) Tasks() []model.TaskState {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.TaskState, 0, len(a.tasks))
	for _, t := range a.tasks {
		out = append(out, *t)
	}
	return out
}

// Health returns a copy of every tracked component's health.
func (a *Aggregator) Health() map[string]model.ComponentHealth {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]model.ComponentHealth, len(a.health))
	for k, v := range a.health {
		out[k] = *v
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// appendBoundedString appends s to list and trims to first KeepFirst +
// last KeepLast once len(list) exceeds ListCap (spec §4.4).
func appendBoundedString(list []string, s string) []string {
	list = append(list, s)
	return trimStrings(list)
}

func trimStrings(list []string) []string {
	if len(list) <= ListCap {
		return list
	}
	trimmed := make([]string, 0, KeepFirst+KeepLast)
	trimmed = append(trimmed, list[:KeepFirst]...)
	trimmed = append(trimmed, list[len(list)-KeepLast:]...)
	return trimmed
}

func appendBounded(list []model.TimelineEntry, entry model.TimelineEntry) []model.TimelineEntry {
	list = append(list, entry)
	if len(list) <= ListCap {
		return list
	}
	trimmed := make([]model.TimelineEntry, 0, KeepFirst+KeepLast)
	trimmed = append(trimmed, list[:KeepFirst]...)
	trimmed = append(trimmed, list[len(list)-KeepLast:]...)
	return trimmed
}
