// Package health publishes the periodic liveness heartbeat every worker
// emits (spec §6 health-event topic; spec §4.4 staleness detection on the
// Aggregator side).
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

// Interval is how often a worker publishes its health event, matching
// the original nodes' 30-second heartbeat loop.
const Interval = 30 * time.Second

// Heartbeat publishes a health event for nodeType/hostname every Interval
// until ctx is canceled. Publish errors are logged and do not stop the
// loop, since a missed heartbeat is recoverable (the next tick retries)
// and must never crash the worker.
func Heartbeat(ctx context.Context, b bus.Bus, topic, nodeType, hostname string) {
	publishOnce(ctx, b, topic, nodeType, hostname)

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishOnce(ctx, b, topic, nodeType, hostname)
		}
	}
}

func publishOnce(ctx context.Context, b bus.Bus, topic, nodeType, hostname string) {
	event := model.HealthEvent{
		NodeType:  nodeType,
		Hostname:  hostname,
		Status:    model.StatusOnline,
		Timestamp: model.NowISO(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("health: failed to marshal heartbeat", "error", err)
		return
	}

	if err := b.Publish(ctx, topic, data); err != nil {
		slog.Warn("health: failed to publish heartbeat", "error", err)
	}
}
