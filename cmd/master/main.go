// Command master runs the Master daemon: it consumes job-submission
// messages and expands them into individual crawl tasks (spec §4.1).
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
	"github.com/mohamedmostafam0/distracrawl/internal/health"
	"github.com/mohamedmostafam0/distracrawl/internal/master"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
)

const maxOutstandingJobSubmissions = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fatal("master: failed to load configuration", "error", err)
	}
	config.SetupLogger(cfg, "master")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgBus, err := bus.NewPubSubBus(ctx, cfg.ProjectID)
	if err != nil {
		config.Fatal("master: failed to connect to message bus", "error", err)
	}
	defer msgBus.Close()

	store, err := blobstore.NewGCSStore(ctx, cfg.BucketName)
	if err != nil {
		config.Fatal("master: failed to connect to blob store", "error", err)
	}
	defer store.Close()

	progress := progresspub.New(msgBus, cfg.Topics.ProgressEvent, "master")
	m := master.New(msgBus, store, progress, cfg.Topics.CrawlTask, slog.Default())

	go health.Heartbeat(ctx, msgBus, cfg.Topics.HealthEvent, "master", cfg.Hostname)

	slog.Info("master: starting", "project", cfg.ProjectID, "subscription", cfg.Subs.JobSubmission)

	err = msgBus.Subscribe(ctx, cfg.Subs.JobSubmission, maxOutstandingJobSubmissions, m.HandleJobSubmission)
	if err != nil && ctx.Err() == nil {
		slog.Error("master: subscription ended unexpectedly", "error", err)
		os.Exit(1)
	}

	slog.Info("master: shutting down")
}
