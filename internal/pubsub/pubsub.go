// Package pubsub is the in-process event bus. Services publish domain
// events without knowing who consumes them; the notification layer
// subscribes.
package pubsub

import "context"

// Message is the unit passed between components on the bus.
type Message struct {
	// Topic identifies the channel (e.g. "presence.updated").
	Topic string
	// UserID identifies the user the event concerns, when applicable.
	UserID string
	// Payload is the raw event data, typically JSON.
	Payload []byte
	// Metadata carries arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes a received message. A non-nil error marks the
// message as not processed.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus. Subscribe is non-blocking;
// the handler runs until the context is cancelled or the bus closes.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
