// Package progresspub builds and publishes progress events onto the
// shared progress-event topic (spec §4.4's event vocabulary), so Master,
// Crawler, and Indexer construct events identically.
package progresspub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

// Publisher publishes model.ProgressEvent values onto a fixed topic for a
// fixed node type.
type Publisher struct {
	bus      bus.Bus
	topic    string
	nodeType string
}

// New creates a Publisher for nodeType, publishing onto topic.
func New(b bus.Bus, topic, nodeType string) *Publisher {
	return &Publisher{bus: b, topic: topic, nodeType: nodeType}
}

// Event publishes a progress event, filling in node_type and timestamp.
// Zero-value fields in evt are omitted by ProgressEvent's json tags.
func (p *Publisher) Event(ctx context.Context, evt model.ProgressEvent) error {
	evt.NodeType = p.nodeType
	evt.Event = model.CanonicalEventName(evt.Event)
	if evt.Timestamp == "" {
		evt.Timestamp = model.NowISO()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("progresspub: failed to marshal event %s: %w", evt.Event, err)
	}

	if err := p.bus.Publish(ctx, p.topic, data); err != nil {
		return fmt.Errorf("progresspub: failed to publish event %s: %w", evt.Event, err)
	}
	return nil
}
