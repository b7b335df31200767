// Package master expands job submissions and crawler-discovered link
// batches into individual crawl tasks, preserving task-id identity across
// continuations (spec §4.1).
package master

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
)

// Pacing delays between crawl-task publishes within one batch, spec §4.1
// "limits bus-burst pressure".
const (
	SeedPacing         = 50 * time.Millisecond
	ContinuationPacing = 10 * time.Millisecond

	// DefaultDepthLimit is used when a link batch omits depth_limit.
	DefaultDepthLimit = 3
)

// Master translates job-submission envelopes into crawl-task publishes.
type Master struct {
	bus       bus.Bus
	store     blobstore.Store
	progress  *progresspub.Publisher
	crawlTopic string
	logger    *slog.Logger
}

// New creates a Master.
func New(b bus.Bus, store blobstore.Store, progress *progresspub.Publisher, crawlTopic string, logger *slog.Logger) *Master {
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{bus: b, store: store, progress: progress, crawlTopic: crawlTopic, logger: logger}
}

// HandleJobSubmission processes one job-submission message per spec §4.1's
// failure-semantics table.
func (m *Master) HandleJobSubmission(ctx context.Context, msg *bus.Message) {
	var envelope model.JobSubmissionEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		m.logger.Warn("master: malformed job-submission envelope", "error", err)
		msg.Ack()
		return
	}

	if envelope.TaskID == "" || envelope.GCSPath == "" {
		m.logger.Warn("master: job-submission envelope missing required fields", "envelope", envelope)
		msg.Ack()
		return
	}

	raw, err := m.store.Read(ctx, envelope.GCSPath)
	if err != nil {
		m.logger.Warn("master: failed to read job blob, nacking for redelivery", "path", envelope.GCSPath, "error", err)
		msg.Nack()
		return
	}

	var seedJob model.Job
	var linkBatch model.LinkBatchPayload
	isContinuation := envelope.IsContinuation || looksLikeLinkBatch(raw)

	var publishErr error
	if !isContinuation {
		if err := json.Unmarshal(raw, &seedJob); err != nil {
			m.logger.Warn("master: malformed seed job blob", "path", envelope.GCSPath, "error", err)
			msg.Ack()
			return
		}
		if len(seedJob.SeedURLs) == 0 {
			m.logger.Warn("master: seed job has no seed_urls", "path", envelope.GCSPath)
			msg.Ack()
			return
		}
		publishErr = m.expandSeedJob(ctx, envelope.TaskID, seedJob)
	} else {
		if err := json.Unmarshal(raw, &linkBatch); err != nil {
			m.logger.Warn("master: malformed link batch blob", "path", envelope.GCSPath, "error", err)
			msg.Ack()
			return
		}
		if len(linkBatch.Seeds()) == 0 {
			m.logger.Warn("master: link batch has no urls", "path", envelope.GCSPath)
			msg.Ack()
			return
		}
		publishErr = m.expandLinkBatch(ctx, envelope.TaskID, linkBatch)
	}

	if publishErr != nil {
		m.logger.Warn("master: failed to publish crawl tasks, nacking", "task_id", envelope.TaskID, "error", publishErr)
		msg.Nack()
		return
	}

	msg.Ack()
}

func (m *Master) expandSeedJob(ctx context.Context, taskID string, job model.Job) error {
	if len(job.SeedURLs) == 0 {
		return fmt.Errorf("master: seed job %s has no seed_urls", taskID)
	}

	if err := m.progress.Event(ctx, model.ProgressEvent{
		Event: model.EventJobReceived,
		JobID: taskID,
		SeedURLs: job.SeedURLs,
		Depth: job.Depth,
		DomainRestriction: job.DomainRestriction,
	}); err != nil {
		m.logger.Warn("master: failed to publish job_received event", "error", err)
	}

	depthLimit := job.Depth
	if depthLimit < 0 {
		depthLimit = 0
	}

	for _, url := range job.SeedURLs {
		task := model.CrawlTask{
			TaskID:            taskID,
			URL:               url,
			Depth:             0,
			DepthLimit:        depthLimit,
			DomainRestriction: job.DomainRestriction,
			SourceJobID:       taskID,
			IsContinuation:    false,
		}
		if err := m.publishCrawlTask(ctx, task); err != nil {
			return err
		}
		sleep(ctx, SeedPacing)
	}

	return nil
}

func (m *Master) expandLinkBatch(ctx context.Context, taskID string, batch model.LinkBatchPayload) error {
	urls := batch.Seeds()

	if err := m.progress.Event(ctx, model.ProgressEvent{
		Event:    model.EventTaskContinuation,
		JobID:    taskID,
		URLCount: len(urls),
	}); err != nil {
		m.logger.Warn("master: failed to publish task_continuation event", "error", err)
	}

	depthLimit := batch.DepthLimit
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}

	for _, url := range urls {
		task := model.CrawlTask{
			TaskID:            taskID,
			URL:               url,
			Depth:             batch.Depth,
			DepthLimit:        depthLimit,
			DomainRestriction: batch.DomainRestriction,
			SourceJobID:       taskID,
			IsContinuation:    true,
		}
		if err := m.publishCrawlTask(ctx, task); err != nil {
			return err
		}
		sleep(ctx, ContinuationPacing)
	}

	return nil
}

// looksLikeLinkBatch inspects the raw blob shape to discriminate a link
// batch from a seed job when the envelope omits is_continuation (spec
// §4.1: "Master also infers by payload shape") — a link batch carries a
// top-level "urls" key that seed jobs never use.
func looksLikeLinkBatch(raw []byte) bool {
	var probe struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.URLs) > 0
}

func (m *Master) publishCrawlTask(ctx context.Context, task model.CrawlTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("master: failed to marshal crawl task: %w", err)
	}
	return m.bus.Publish(ctx, m.crawlTopic, data)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// NewJobID mints a fresh UUID v4 for a seed job submission (spec §6 Task
// id policy), used by cmd/submit-job.
func NewJobID() string {
	return uuid.NewString()
}
