// Command aggregator runs the Progress Aggregator daemon: it merges the
// progress and health streams into live task/component state, detects
// stalls, and exposes a read API (spec §4.4).
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mohamedmostafam0/distracrawl/internal/aggregator"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/config"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

const (
	maxOutstandingProgressEvents = 100
	maxOutstandingHealthEvents   = 50
	detectionInterval            = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fatal("aggregator: failed to load configuration", "error", err)
	}
	config.SetupLogger(cfg, "aggregator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgBus, err := bus.NewPubSubBus(ctx, cfg.ProjectID)
	if err != nil {
		config.Fatal("aggregator: failed to connect to message bus", "error", err)
	}
	defer msgBus.Close()

	agg := aggregator.New(cfg.MaxActiveTasks)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		err := msgBus.Subscribe(ctx, cfg.Subs.ProgressEvent, maxOutstandingProgressEvents, func(ctx context.Context, msg *bus.Message) {
			var evt model.ProgressEvent
			if err := json.Unmarshal(msg.Data, &evt); err != nil {
				slog.Warn("aggregator: malformed progress event", "error", err)
				msg.Ack()
				return
			}
			agg.HandleProgressEvent(evt)
			msg.Ack()
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("aggregator: progress-event subscription ended unexpectedly", "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		err := msgBus.Subscribe(ctx, cfg.Subs.HealthEvent, maxOutstandingHealthEvents, func(ctx context.Context, msg *bus.Message) {
			var evt model.HealthEvent
			if err := json.Unmarshal(msg.Data, &evt); err != nil {
				slog.Warn("aggregator: malformed health event", "error", err)
				msg.Ack()
				return
			}
			agg.HandleHealthEvent(evt)
			msg.Ack()
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("aggregator: health-event subscription ended unexpectedly", "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(detectionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				agg.DetectStalls(now)
				agg.DetectHealthStaleness(now)
			}
		}
	}()

	server := &http.Server{Addr: cfg.AggregatorAddr, Handler: agg.Router()}
	go func() {
		slog.Info("aggregator: read API listening", "addr", cfg.AggregatorAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("aggregator: read API failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	wg.Wait()
	slog.Info("aggregator: shutting down")
}
