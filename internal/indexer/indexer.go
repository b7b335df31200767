// Package indexer upserts extracted page text into the full-text index,
// one document per URL (spec §4.3).
package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/searchindex"
)

// processedTextPrefix is the only blob prefix the Indexer is willing to
// read from, spec §4.3: reject an index-task pointing outside the
// processed-text area of the store before touching it.
const processedTextPrefix = "processed_text/"

// Indexer processes index-task messages.
type Indexer struct {
	store    blobstore.Store
	index    searchindex.Index
	progress *progresspub.Publisher
	logger   *slog.Logger
}

// New creates an Indexer. EnsureMapping should be called once at startup
// before Subscribe begins (spec §4.3 "Index mapping contract").
func New(store blobstore.Store, index searchindex.Index, progress *progresspub.Publisher, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, index: index, progress: progress, logger: logger}
}

// EnsureMapping creates the target index's mapping if it does not exist.
func (idx *Indexer) EnsureMapping(ctx context.Context) error {
	return idx.index.EnsureMapping(ctx)
}

// HandleIndexTask processes one index-task message per spec §4.3.
func (idx *Indexer) HandleIndexTask(ctx context.Context, msg *bus.Message) {
	var task model.IndexTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		idx.logger.Warn("indexer: malformed index-task envelope", "error", err)
		msg.Ack()
		return
	}

	url := task.EffectiveURL()
	if url == "" || task.GCSProcessedPath == "" {
		idx.logger.Warn("indexer: index-task missing url or processed path", "task", task)
		msg.Ack()
		return
	}

	if !strings.HasPrefix(task.GCSProcessedPath, processedTextPrefix) {
		idx.logger.Warn("indexer: index-task processed path outside processed_text/, dropping", "path", task.GCSProcessedPath)
		msg.Ack()
		return
	}

	content, err := idx.store.Read(ctx, task.GCSProcessedPath)
	if err != nil {
		idx.logger.Warn("indexer: failed to read processed text, nacking", "path", task.GCSProcessedPath, "error", err)
		msg.Nack()
		return
	}

	result, err := idx.index.Upsert(ctx, searchindex.Document{URL: url, Content: string(content)})
	if err != nil {
		idx.logger.Warn("indexer: upsert failed, nacking", "url", url, "error", err)
		msg.Nack()
		return
	}
	if result != searchindex.ResultCreated && result != searchindex.ResultUpdated {
		idx.logger.Warn("indexer: unexpected upsert result, nacking", "url", url, "result", result)
		msg.Nack()
		return
	}

	if err := idx.progress.Event(ctx, model.ProgressEvent{
		Event:     model.EventURLIndexed,
		TaskID:    task.SourceTaskID,
		URL:       url,
		ContentID: task.ContentID,
	}); err != nil {
		idx.logger.Warn("indexer: failed to publish url_indexed event", "error", err)
	}

	msg.Ack()
}
