package indexer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/searchindex"
)

func newTestIndexer() (*Indexer, *blobstore.FakeStore, *searchindex.FakeIndex, *bus.FakeBus) {
	store := blobstore.NewFakeStore()
	idx := searchindex.NewFakeIndex()
	b := bus.NewFakeBus()
	progress := progresspub.New(b, "progress-event", "indexer")
	return New(store, idx, progress, nil), store, idx, b
}

func TestHandleIndexTaskUpsertsAndAcks(t *testing.T) {
	indexer, store, idx, _ := newTestIndexer()
	ctx := context.Background()

	store.Write(ctx, "processed_text/c1.txt", []byte("hello world"), blobstore.ContentTypePlain)

	task := model.IndexTask{
		SourceTaskID:     "task-1",
		ContentID:        "c1",
		OriginalURL:      "http://a.test/",
		FinalURL:         "http://a.test/final",
		GCSProcessedPath: "processed_text/c1.txt",
	}
	data, _ := json.Marshal(task)

	acked := false
	msg := bus.NewMessage(data, func() { acked = true }, func() { t.Error("unexpected nack") })
	indexer.HandleIndexTask(ctx, msg)

	assert.True(t, acked, "expected successful upsert to ack")
	doc, ok := idx.Get("http://a.test/final")
	require.True(t, ok)
	assert.Equal(t, "hello world", doc.Content)
}

func TestHandleIndexTaskBlobReadFailureNacks(t *testing.T) {
	indexer, _, _, _ := newTestIndexer()
	task := model.IndexTask{SourceTaskID: "task-1", OriginalURL: "http://a.test/", GCSProcessedPath: "processed_text/missing.txt"}
	data, _ := json.Marshal(task)

	nacked := false
	msg := bus.NewMessage(data, func() { t.Error("unexpected ack") }, func() { nacked = true })
	indexer.HandleIndexTask(context.Background(), msg)

	assert.True(t, nacked, "expected blob read failure to nack")
}

func TestHandleIndexTaskPathOutsideProcessedTextAcks(t *testing.T) {
	indexer, store, _, _ := newTestIndexer()
	ctx := context.Background()
	store.Write(ctx, "raw_html/c1.html", []byte("<html></html>"), blobstore.ContentTypeHTML)

	task := model.IndexTask{SourceTaskID: "task-1", OriginalURL: "http://a.test/", GCSProcessedPath: "raw_html/c1.html"}
	data, _ := json.Marshal(task)

	acked := false
	msg := bus.NewMessage(data, func() { acked = true }, func() { t.Error("unexpected nack") })
	indexer.HandleIndexTask(ctx, msg)

	assert.True(t, acked, "expected path outside processed_text/ to be dropped with an ack")
}

func TestHandleIndexTaskMalformedAcks(t *testing.T) {
	indexer, _, _, _ := newTestIndexer()
	acked := false
	msg := bus.NewMessage([]byte("not json"), func() { acked = true }, func() { t.Error("unexpected nack") })
	indexer.HandleIndexTask(context.Background(), msg)
	assert.True(t, acked, "expected malformed task to be acked")
}

func TestHandleIndexTaskMissingFieldsAcks(t *testing.T) {
	indexer, _, _, _ := newTestIndexer()
	task := model.IndexTask{SourceTaskID: "task-1"}
	data, _ := json.Marshal(task)
	acked := false
	msg := bus.NewMessage(data, func() { acked = true }, func() { t.Error("unexpected nack") })
	indexer.HandleIndexTask(context.Background(), msg)
	assert.True(t, acked, "expected missing url/path to ack")
}
