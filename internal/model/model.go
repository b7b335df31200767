// Package model holds the wire and in-memory data types shared by every
// component of the crawl pipeline: jobs, crawl tasks, link batches, index
// tasks, progress events, health events, and aggregator task state.
package model

import (
	"sort"
	"strings"
	"time"
)

// TimeFormat is the ISO-8601 UTC layout used on every timestamp field
// crossing the bus, matching the original Python nodes' datetime.utcnow().isoformat().
const TimeFormat = "2006-01-02T15:04:05.999999"

// NowISO returns the current UTC time formatted per TimeFormat.
func NowISO() string {
	return time.Now().UTC().Format(TimeFormat)
}

// Job is a user submission: a set of seed URLs to crawl to a given depth.
// It is persisted as a blob at crawl_tasks/{job_id}.json.
type Job struct {
	JobID             string   `json:"task_id"`
	SeedURLs          []string `json:"seed_urls"`
	Depth             int      `json:"depth"`
	DomainRestriction string   `json:"domain_restriction,omitempty"`
	Timestamp         string   `json:"timestamp,omitempty"`
}

// LinkBatchPayload is the blob contents for a crawler-discovered batch of
// URLs re-submitted to Master as a continuation of an existing task.
type LinkBatchPayload struct {
	URLs              []string `json:"urls"`
	SeedURLs          []string `json:"seed_urls,omitempty"` // alias accepted on read, see Seeds
	Depth             int      `json:"depth"`
	DepthLimit        int      `json:"depth_limit,omitempty"`
	DomainRestriction string   `json:"domain_restriction,omitempty"`
}

// Seeds returns the batch's URL list regardless of whether the producer
// used the "urls" or "seed_urls" key (the crawler's own continuation writer
// uses "urls"; "seed_urls" is accepted as an alias). "urls" wins when both
// are set.
func (b LinkBatchPayload) Seeds() []string {
	if len(b.URLs) > 0 {
		return b.URLs
	}
	return b.SeedURLs
}

// JobSubmissionEnvelope is the job-submission bus message: a pointer to a
// blob holding either a seed Job or a LinkBatchPayload.
type JobSubmissionEnvelope struct {
	TaskID         string `json:"task_id"`
	GCSPath        string `json:"gcs_path"`
	IsContinuation bool   `json:"is_continuation,omitempty"`
	URLCount       int    `json:"url_count,omitempty"`
}

// CrawlTask is a single URL to fetch, published by Master on the
// crawl-task topic.
type CrawlTask struct {
	TaskID            string `json:"task_id"`
	URL               string `json:"url"`
	Depth             int    `json:"depth"`
	DepthLimit        int    `json:"depth_limit"`
	DomainRestriction string `json:"domain_restriction,omitempty"`
	SourceJobID       string `json:"source_job_id"`
	IsContinuation    bool   `json:"is_continuation"`
}

// IndexTask requests that a single crawled page be ingested into the
// full-text index, published by Crawler on the index-task topic.
type IndexTask struct {
	SourceTaskID      string  `json:"source_task_id"`
	ContentID         string  `json:"content_id"`
	OriginalURL       string  `json:"original_url"`
	FinalURL          string  `json:"final_url"`
	GCSProcessedPath  string  `json:"gcs_processed_path"`
	CrawledTimestamp  float64 `json:"crawled_timestamp"`
}

// EffectiveURL returns the final URL if present, else the original.
func (t IndexTask) EffectiveURL() string {
	if t.FinalURL != "" {
		return t.FinalURL
	}
	return t.OriginalURL
}

// Canonical progress event names. Aggregator normalises the aliases
// "crawled" and "indexed" to these on ingress (spec §9 Event aliases).
const (
	EventJobReceived      = "job_received"
	EventTaskContinuation = "task_continuation"
	EventURLScheduled     = "url_scheduled"
	EventTaskStarted      = "task_started"
	EventURLCrawled       = "url_crawled"
	EventURLSkipped       = "url_skipped"
	EventNewURLsFound     = "new_urls_found"
	EventURLIndexed       = "url_indexed"
	EventDepthComplete    = "depth_complete"
	EventTaskCompleted    = "task_completed"
	EventTaskFailed       = "task_failed"

	eventURLCrawledAlias = "crawled"
	eventURLIndexedAlias = "indexed"
)

// CanonicalEventName maps the "crawled"/"indexed" aliases observed in the
// source to their canonical long form; all other names pass through
// unchanged.
func CanonicalEventName(event string) string {
	switch event {
	case eventURLCrawledAlias:
		return EventURLCrawled
	case eventURLIndexedAlias:
		return EventURLIndexed
	default:
		return event
	}
}

// ProgressEvent is a single entry on the progress-event topic.
type ProgressEvent struct {
	NodeType          string         `json:"node_type"`
	Event             string         `json:"event"`
	TaskID            string         `json:"task_id,omitempty"`
	URL               string         `json:"url,omitempty"`
	Timestamp         string         `json:"timestamp"`
	JobID             string         `json:"job_id,omitempty"`
	SeedURLs          []string       `json:"seed_urls,omitempty"`
	Depth             int            `json:"depth,omitempty"`
	DomainRestriction string         `json:"domain_restriction,omitempty"`
	URLCount          int            `json:"url_count,omitempty"`
	Count             int            `json:"count,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	ContentID         string         `json:"content_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	Extra             map[string]any `json:"-"`
}

// HealthEvent is a single entry on the health-event topic, published every
// 30s by every worker.
type HealthEvent struct {
	NodeType  string `json:"node_type"`
	Hostname  string `json:"hostname"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Task status values, spec §3 Task State.
const (
	TaskSubmitted  = "submitted"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// ContinuationDetail records one task_continuation event on a task's
// timeline (spec §4.4: "append {timestamp, url_count}").
type ContinuationDetail struct {
	Timestamp string `json:"timestamp"`
	URLCount  int    `json:"url_count"`
}

// TimelineEntry is one bounded-list entry in a task's progress timeline.
type TimelineEntry struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// TaskState is the Aggregator's in-memory view of one logical task,
// spec §3 Task State.
type TaskState struct {
	TaskID            string   `json:"task_id"`
	Status            string   `json:"status"`
	CrawledURLs       int      `json:"crawled_urls"`
	IndexedURLs       int      `json:"indexed_urls"`
	Continuations     int      `json:"continuations"`
	CurrentDepth      int      `json:"current_depth"`
	TotalDepth        int      `json:"total_depth"`
	SeedURLs          []string `json:"seed_urls"`
	DomainRestriction string   `json:"domain_restriction,omitempty"`

	CrawledURLList []string              `json:"crawled_urls_list"`
	IndexedURLList []string              `json:"indexed_urls_list"`
	Timeline       []TimelineEntry       `json:"progress_events"`
	Continuation   []ContinuationDetail  `json:"continuation_details,omitempty"`

	StartTime    string `json:"start_time,omitempty"`
	LastUpdate   string `json:"last_update"`
	EndTime      string `json:"end_time,omitempty"`
	DepthComplete int   `json:"depth_complete,omitempty"`

	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
	Warning      string `json:"warning,omitempty"`
	AutoCompleted bool  `json:"auto_completed,omitempty"`
}

// Terminal reports whether the task has already reached a terminal status,
// spec §8: once completed or failed, a task must not be un-terminated by a
// late or redelivered progress event.
func (t *TaskState) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// SeedKey computes the canonical coalescing key for a set of seed URLs: the
// sorted URLs joined with the \x1f unit separator, used by the Aggregator to detect two
// submissions carrying an identical seed set (spec §4.4 duplicate-submission
// coalescing).
func SeedKey(seedURLs []string) string {
	if len(seedURLs) == 0 {
		return ""
	}
	sorted := make([]string, len(seedURLs))
	copy(sorted, seedURLs)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// Summary is the Aggregator's system-wide counters (spec §4.4 Summary
// counters).
type Summary struct {
	ActiveTasks    int `json:"active_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	FailedTasks    int `json:"failed_tasks"`
	URLsCrawled    int `json:"urls_crawled"`
	URLsIndexed    int `json:"urls_indexed"`
}

// ComponentHealth is the Aggregator's view of one worker component's
// liveness.
type ComponentHealth struct {
	Status    string `json:"status"`
	Hostname  string `json:"hostname,omitempty"`
	LastCheck string `json:"last_check,omitempty"`
}
