package bus

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubBus adapts cloud.google.com/go/pubsub to the Bus contract
// (spec §6 Domain Stack: Message Bus → Google Cloud Pub/Sub), grounded on
// the original Python nodes' universal use of google.cloud.pubsub_v1.
type PubSubBus struct {
	client *pubsub.Client
	topics map[string]*pubsub.Topic
}

// NewPubSubBus creates a Bus backed by a live Pub/Sub client for
// projectID.
func NewPubSubBus(ctx context.Context, projectID string) (*PubSubBus, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bus: failed to create pubsub client: %w", err)
	}
	return &PubSubBus{client: client, topics: make(map[string]*pubsub.Topic)}, nil
}

func (b *PubSubBus) topic(name string) *pubsub.Topic {
	if t, ok := b.topics[name]; ok {
		return t
	}
	t := b.client.Topic(name)
	b.topics[name] = t
	return t
}

// Publish implements Bus.
func (b *PubSubBus) Publish(ctx context.Context, topic string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result := b.topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("bus: publish to %s failed: %w", topic, err)
	}
	return nil
}

// Subscribe implements Bus. maxOutstanding bounds concurrently
// unacknowledged messages (spec §5 flow control).
func (b *PubSubBus) Subscribe(ctx context.Context, subscription string, maxOutstanding int, handler Handler) error {
	sub := b.client.Subscription(subscription)
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		handler(ctx, NewMessage(m.Data, m.Ack, m.Nack))
	})
}

// Close implements Bus.
func (b *PubSubBus) Close() error {
	return b.client.Close()
}
