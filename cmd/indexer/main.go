// Command indexer runs the Indexer daemon: it upserts extracted page
// text into the full-text index, one document per URL (spec §4.3).
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
	"github.com/mohamedmostafam0/distracrawl/internal/indexer"
	"github.com/mohamedmostafam0/distracrawl/internal/progresspub"
	"github.com/mohamedmostafam0/distracrawl/internal/searchindex"
)

const maxOutstandingIndexTasks = 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fatal("indexer: failed to load configuration", "error", err)
	}
	config.SetupLogger(cfg, "indexer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgBus, err := bus.NewPubSubBus(ctx, cfg.ProjectID)
	if err != nil {
		config.Fatal("indexer: failed to connect to message bus", "error", err)
	}
	defer msgBus.Close()

	store, err := blobstore.NewGCSStore(ctx, cfg.BucketName)
	if err != nil {
		config.Fatal("indexer: failed to connect to blob store", "error", err)
	}
	defer store.Close()

	index, err := searchindex.NewElasticIndex(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, cfg.ElasticsearchUsername, cfg.ElasticsearchPassword)
	if err != nil {
		config.Fatal("indexer: failed to connect to search index", "error", err)
	}

	progress := progresspub.New(msgBus, cfg.Topics.ProgressEvent, "indexer")
	idx := indexer.New(store, index, progress, slog.Default())

	if err := idx.EnsureMapping(ctx); err != nil {
		config.Fatal("indexer: failed to ensure index mapping", "error", err)
	}

	go health.Heartbeat(ctx, msgBus, cfg.Topics.HealthEvent, "indexer", cfg.Hostname)

	slog.Info("indexer: starting", "project", cfg.ProjectID, "subscription", cfg.Subs.IndexTask)

	err = msgBus.Subscribe(ctx, cfg.Subs.IndexTask, maxOutstandingIndexTasks, idx.HandleIndexTask)
	if err != nil && ctx.Err() == nil {
		slog.Error("indexer: subscription ended unexpectedly", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer: shutting down")
}
