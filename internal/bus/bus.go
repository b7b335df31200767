// Package bus defines the durable message-bus contract every component
// publishes to and subscribes from (spec §2, §5 Concurrency & Resource
// Model), plus a Google Cloud Pub/Sub adapter and an in-memory fake for
// tests.
package bus

import "context"

// Message is one delivered bus message: a raw payload plus the Ack/Nack
// disposition the handler must call exactly once (spec §7: ack-after-
// side-effects, nack on transient failure).
type Message struct {
	Data []byte

	ack  func()
	nack func()
}

// Ack acknowledges successful processing; the bus will not redeliver.
func (m *Message) Ack() {
	if m.ack != nil {
		m.ack()
	}
}

// Nack signals a transient failure; the bus redelivers per its retry
// policy.
func (m *Message) Nack() {
	if m.nack != nil {
		m.nack()
	}
}

// NewMessage builds a Message with the given ack/nack callbacks; adapters
// use this to wrap their native message types.
func NewMessage(data []byte, ack, nack func()) *Message {
	return &Message{Data: data, ack: ack, nack: nack}
}

// Handler processes one delivered message. It must call exactly one of
// msg.Ack or msg.Nack before returning, per spec §7's error-kind table.
type Handler func(ctx context.Context, msg *Message)

// Bus is the narrow contract business logic depends on instead of a
// concrete pub/sub client (spec §2: "required dependencies... not their
// implementations").
type Bus interface {
	// Publish sends data to topic and blocks until the bus has durably
	// accepted it or ctx is done (spec §5 "bounded wait on publish").
	Publish(ctx context.Context, topic string, data []byte) error

	// Subscribe pulls messages for subscription and invokes handler for
	// each, honoring flow control (maxOutstanding caps concurrently
	// undelivered-ack messages) until ctx is canceled.
	Subscribe(ctx context.Context, subscription string, maxOutstanding int, handler Handler) error

	// Close releases adapter resources.
	Close() error
}
