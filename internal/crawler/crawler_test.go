package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/htmlparse"
	"github.com/mohamedmostafam0/distracrawl/internal/httpclient"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/robots"
	"github.com/mohamedmostafam0/distracrawl/internal/urlnorm"
)

func newTestCrawler(b *bus.FakeBus, store *blobstore.FakeStore) *Crawler {
	httpClient := httpclient.NewDefaultClient()
	robotsChecker := robots.NewChecker("test-agent", nil)
	parser := htmlparse.NewLinkExtractor(nil)
	progress := progresspub.New(b, "progress-event", "crawler")
	return New(httpClient, robotsChecker, parser, store, b, progress, "index-task", "job-submission", nil)
}

func waitForMessage(t *testing.T, b *bus.FakeBus, topic string) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var data []byte
	done := make(chan struct{})
	go b.Subscribe(ctx, topic, 10, func(ctx context.Context, m *bus.Message) {
		data = m.Data
		m.Ack()
		close(done)
	})

	select {
	case <-done:
		return data
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message on %s", topic)
		return nil
	}
}

func TestHandleCrawlTaskHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Hello</p><a href="/next">Next</a></body></html>`))
	}))
	defer srv.Close()

	b := bus.NewFakeBus()
	store := blobstore.NewFakeStore()
	c := newTestCrawler(b, store)

	task := model.CrawlTask{TaskID: "task-1", URL: srv.URL + "/", Depth: 0, DepthLimit: 2, SourceJobID: "task-1"}
	data, _ := json.Marshal(task)

	acked := make(chan struct{})
	msg := bus.NewMessage(data, func() { close(acked) }, func() { t.Error("unexpected nack") })

	go c.HandleCrawlTask(context.Background(), msg)

	indexData := waitForMessage(t, b, "index-task")
	var indexTask model.IndexTask
	require.NoError(t, json.Unmarshal(indexData, &indexTask))
	assert.Equal(t, "task-1", indexTask.SourceTaskID)

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("expected task to be acked")
	}

	assert.NotZero(t, c.SeenCount(), "expected seen-set to record the fetched URL")
}

func TestHandleCrawlTaskSeenURLAcksWithoutFetch(t *testing.T) {
	b := bus.NewFakeBus()
	store := blobstore.NewFakeStore()
	c := newTestCrawler(b, store)

	normalized, _ := urlnorm.Normalize("https://example.test/page")
	c.seen[normalized] = true

	task := model.CrawlTask{TaskID: "task-2", URL: "https://example.test/page", Depth: 0, DepthLimit: 2}
	data, _ := json.Marshal(task)

	acked := false
	msg := bus.NewMessage(data, func() { acked = true }, func() { t.Error("unexpected nack") })
	c.HandleCrawlTask(context.Background(), msg)

	assert.True(t, acked, "expected duplicate URL to be acked immediately")
}

func TestHandleCrawlTaskMalformedAcks(t *testing.T) {
	b := bus.NewFakeBus()
	store := blobstore.NewFakeStore()
	c := newTestCrawler(b, store)

	acked := false
	msg := bus.NewMessage([]byte("not json"), func() { acked = true }, func() { t.Error("unexpected nack") })
	c.HandleCrawlTask(context.Background(), msg)
	assert.True(t, acked, "expected malformed task to be acked")
}

func TestHandleCrawlTaskNonHTMLAcksWithoutPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := bus.NewFakeBus()
	store := blobstore.NewFakeStore()
	c := newTestCrawler(b, store)

	task := model.CrawlTask{TaskID: "task-3", URL: srv.URL + "/data.json", Depth: 0, DepthLimit: 2}
	data, _ := json.Marshal(task)

	acked := make(chan struct{})
	msg := bus.NewMessage(data, func() { close(acked) }, func() { t.Error("unexpected nack") })
	c.HandleCrawlTask(context.Background(), msg)

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("expected non-HTML response to be acked")
	}
}
