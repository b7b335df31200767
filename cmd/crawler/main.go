// Command crawler runs the Crawler daemon: it fetches one URL per
// crawl-task message, persists content, and discovers new links
// (spec §4.2). Multiple instances may run concurrently; each keeps its
// own in-memory seen-set.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/config"
	"github.com/mohamedmostafam0/distracrawl/internal/crawler"
	"github.com/mohamedmostafam0/distracrawl/internal/health"
	"github.com/mohamedmostafam0/distracrawl/internal/htmlparse"
	"github.com/mohamedmostafam0/distracrawl/internal/httpclient"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/robots"
)

const maxOutstandingCrawlTasks = 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fatal("crawler: failed to load configuration", "error", err)
	}
	config.SetupLogger(cfg, "crawler")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgBus, err := bus.NewPubSubBus(ctx, cfg.ProjectID)
	if err != nil {
		config.Fatal("crawler: failed to connect to message bus", "error", err)
	}
	defer msgBus.Close()

	store, err := blobstore.NewGCSStore(ctx, cfg.BucketName)
	if err != nil {
		config.Fatal("crawler: failed to connect to blob store", "error", err)
	}
	defer store.Close()

	httpClient := httpclient.NewClient(&httpclient.Config{
		UserAgent:        cfg.UserAgent,
		Timeout:          httpclient.DefaultTimeout,
		RetryCount:       httpclient.DefaultRetryCount,
		RetryWaitTime:    httpclient.DefaultRetryWaitTime,
		RetryMaxWaitTime: httpclient.DefaultRetryMaxWaitTime,
	})
	robotsChecker := robots.NewChecker(cfg.UserAgent, slog.Default())
	parser := htmlparse.NewLinkExtractor(slog.Default())
	progress := progresspub.New(msgBus, cfg.Topics.ProgressEvent, "crawler")

	c := crawler.New(httpClient, robotsChecker, parser, store, msgBus, progress,
		cfg.Topics.IndexTask, cfg.Topics.JobSubmission, slog.Default())

	go health.Heartbeat(ctx, msgBus, cfg.Topics.HealthEvent, "crawler", cfg.Hostname)

	slog.Info("crawler: starting", "project", cfg.ProjectID, "subscription", cfg.Subs.CrawlTask)

	err = msgBus.Subscribe(ctx, cfg.Subs.CrawlTask, maxOutstandingCrawlTasks, c.HandleCrawlTask)
	if err != nil && ctx.Err() == nil {
		slog.Error("crawler: subscription ended unexpectedly", "error", err)
		os.Exit(1)
	}

	slog.Info("crawler: shutting down")
}
