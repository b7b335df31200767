// Package crawler fetches a single URL politely, persists its content,
// emits indexing work, and discovers new URLs to hand back to Master
// (spec §4.2).
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/htmlparse"
	"github.com/mohamedmostafam0/distracrawl/internal/httpclient"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/robots"
	"github.com/mohamedmostafam0/distracrawl/internal/urlnorm"
)

// Politeness and fetch timing, spec §4.2 steps 3 and 5.
const (
	PoliteDelay    = 1 * time.Second
	RequestTimeout = 10 * time.Second

	// DefaultDepthLimit applies when a crawl-task omits depth_limit
	// (spec §4.2 step 1).
	DefaultDepthLimit = 3
)

// Crawler processes crawl-task messages one at a time per worker
// goroutine; all worker goroutines share one mutex-guarded seen-set
// (spec §4.2 "Seen-set policy": per-process, not shared across instances).
type Crawler struct {
	http     *httpclient.Client
	robots   *robots.Checker
	parser   *htmlparse.LinkExtractor
	store    blobstore.Store
	bus      bus.Bus
	progress *progresspub.Publisher

	indexTopic    string
	jobSubmitTopic string

	logger *slog.Logger

	mu       sync.Mutex
	seen     map[string]bool
	limiters map[string]*rate.Limiter
}

// New creates a Crawler publishing index tasks to indexTopic and link
// batches to jobSubmitTopic (the job-submission topic Master consumes).
func New(httpClient *httpclient.Client, robotsChecker *robots.Checker, parser *htmlparse.LinkExtractor, store blobstore.Store, b bus.Bus, progress *progresspub.Publisher, indexTopic, jobSubmitTopic string, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		http:           httpClient,
		robots:         robotsChecker,
		parser:         parser,
		store:          store,
		bus:            b,
		progress:       progress,
		indexTopic:     indexTopic,
		jobSubmitTopic: jobSubmitTopic,
		logger:         logger,
		seen:           make(map[string]bool),
		limiters:       make(map[string]*rate.Limiter),
	}
}

// hostLimiter returns the per-host politeness limiter for host, creating one
// capped at one request per PoliteDelay if this is the first request to it
// (spec §4.2 step 3: wait one second between requests to the same host).
func (c *Crawler) hostLimiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(PoliteDelay), 1)
		l.Allow() // consume the initial burst token so the first request still waits
		c.limiters[host] = l
	}
	return l
}

// HandleCrawlTask processes one crawl-task message through spec §4.2
// steps 1–11.
func (c *Crawler) HandleCrawlTask(ctx context.Context, msg *bus.Message) {
	var task model.CrawlTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		c.logger.Warn("crawler: malformed crawl-task envelope", "error", err)
		msg.Ack()
		return
	}

	if !c.validate(task) {
		c.logger.Warn("crawler: invalid crawl-task", "task", task)
		msg.Ack()
		return
	}

	var limitProbe struct {
		DepthLimit *int `json:"depth_limit"`
	}
	if err := json.Unmarshal(msg.Data, &limitProbe); err == nil && limitProbe.DepthLimit == nil {
		task.DepthLimit = DefaultDepthLimit
	}

	normalized, err := urlnorm.Normalize(task.URL)
	if err != nil {
		c.logger.Warn("crawler: failed to normalize URL", "url", task.URL, "error", err)
		msg.Ack()
		return
	}

	if c.markSeen(normalized) {
		msg.Ack()
		return
	}

	host, err := urlnorm.ExtractDomain(normalized)
	if err != nil {
		c.logger.Warn("crawler: failed to extract host for rate limiting", "url", normalized, "error", err)
		msg.Ack()
		return
	}
	if err := c.hostLimiter(host).Wait(ctx); err != nil {
		msg.Nack()
		return
	}

	allowed, err := c.robots.IsAllowed(normalized)
	if err != nil {
		c.logger.Warn("crawler: failed to evaluate robots.txt", "url", normalized, "error", err)
		msg.Ack()
		return
	}
	if !allowed {
		c.emitProgress(ctx, model.ProgressEvent{Event: model.EventURLSkipped, TaskID: task.TaskID, URL: normalized, Reason: "robots_txt"})
		msg.Ack()
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	resp, err := c.http.Get(fetchCtx, normalized)
	cancel()
	if err != nil {
		if fetchCtx.Err() != nil {
			c.logger.Warn("crawler: HTTP fetch timed out, nacking", "url", normalized)
			msg.Nack()
			return
		}
		c.logger.Warn("crawler: HTTP fetch failed", "url", normalized, "error", err)
		msg.Ack()
		return
	}
	if httpclient.IsClientError(resp) || httpclient.IsServerError(resp) {
		c.logger.Warn("crawler: HTTP error status", "url", normalized, "status", resp.StatusCode())
		msg.Ack()
		return
	}

	finalURL := httpclient.FinalURL(resp)
	contentType := resp.Header().Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") {
		msg.Ack()
		return
	}

	html := resp.String()
	contentID := uuid.NewString()

	rawPath := fmt.Sprintf("raw_html/%s.html", contentID)
	if err := c.store.Write(ctx, rawPath, []byte(html), blobstore.ContentTypeHTML); err != nil {
		c.logger.Warn("crawler: failed to write raw HTML, nacking", "path", rawPath, "error", err)
		msg.Nack()
		return
	}

	text, err := c.parser.ExtractText(html)
	if err != nil {
		c.logger.Warn("crawler: failed to extract text", "url", finalURL, "error", err)
		msg.Ack()
		return
	}

	processedPath := fmt.Sprintf("processed_text/%s.txt", contentID)
	if err := c.store.Write(ctx, processedPath, []byte(text), blobstore.ContentTypePlain); err != nil {
		c.logger.Warn("crawler: failed to write processed text, nacking", "path", processedPath, "error", err)
		msg.Nack()
		return
	}

	indexTask := model.IndexTask{
		SourceTaskID:     task.TaskID,
		ContentID:        contentID,
		OriginalURL:      task.URL,
		FinalURL:         finalURL,
		GCSProcessedPath: processedPath,
		CrawledTimestamp: float64(time.Now().UTC().UnixNano()) / 1e9,
	}
	indexData, err := json.Marshal(indexTask)
	if err != nil {
		c.logger.Error("crawler: failed to marshal index task", "error", err)
		msg.Nack()
		return
	}
	if err := c.bus.Publish(ctx, c.indexTopic, indexData); err != nil {
		c.logger.Warn("crawler: failed to publish index task, nacking", "error", err)
		msg.Nack()
		return
	}

	c.emitProgress(ctx, model.ProgressEvent{Event: model.EventURLCrawled, TaskID: task.TaskID, URL: finalURL})

	if task.Depth < task.DepthLimit {
		if err := c.discoverLinks(ctx, task, finalURL, html); err != nil {
			c.logger.Warn("crawler: failed to hand off discovered links, nacking", "error", err)
			msg.Nack()
			return
		}
	}

	msg.Ack()
}

func (c *Crawler) validate(task model.CrawlTask) bool {
	if task.TaskID == "" {
		return false
	}
	if !urlnorm.IsValidURL(task.URL) {
		return false
	}
	return true
}

// markSeen reports whether normalized was already seen, inserting it if
// not (spec §4.2 step 2).
func (c *Crawler) markSeen(normalized string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[normalized] {
		return true
	}
	c.seen[normalized] = true
	return false
}

func (c *Crawler) discoverLinks(ctx context.Context, task model.CrawlTask, finalURL, html string) error {
	links, err := c.parser.ExtractLinksWithDomainRestriction(finalURL, html, task.DomainRestriction)
	if err != nil {
		return fmt.Errorf("crawler: failed to extract links: %w", err)
	}

	var fresh []string
	c.mu.Lock()
	for _, link := range links {
		if c.seen[link] {
			continue
		}
		c.seen[link] = true
		fresh = append(fresh, link)
	}
	c.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}

	batch := model.LinkBatchPayload{
		URLs:              fresh,
		Depth:             task.Depth + 1,
		DepthLimit:        task.DepthLimit,
		DomainRestriction: task.DomainRestriction,
	}
	batchData, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("crawler: failed to marshal link batch: %w", err)
	}

	batchPath := fmt.Sprintf("new_tasks/%s_%s.json", uuid.NewString(), time.Now().UTC().Format("20060102T150405"))
	if err := c.store.Write(ctx, batchPath, batchData, blobstore.ContentTypeJSON); err != nil {
		return fmt.Errorf("crawler: failed to write link batch blob: %w", err)
	}

	envelope := model.JobSubmissionEnvelope{
		TaskID:         task.TaskID,
		GCSPath:        batchPath,
		IsContinuation: true,
		URLCount:       len(fresh),
	}
	envData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("crawler: failed to marshal job-submission envelope: %w", err)
	}
	if err := c.bus.Publish(ctx, c.jobSubmitTopic, envData); err != nil {
		return fmt.Errorf("crawler: failed to publish link batch envelope: %w", err)
	}

	c.emitProgress(ctx, model.ProgressEvent{Event: model.EventNewURLsFound, TaskID: task.TaskID, Count: len(fresh)})

	return nil
}

func (c *Crawler) emitProgress(ctx context.Context, evt model.ProgressEvent) {
	if err := c.progress.Event(ctx, evt); err != nil {
		c.logger.Warn("crawler: failed to publish progress event", "event", evt.Event, "error", err)
	}
}

// SeenCount returns the number of normalized URLs tracked in this
// crawler's in-memory seen-set, for observability.
func (c *Crawler) SeenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
