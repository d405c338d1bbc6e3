package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const metaKeyUserID = "user_id"

// Bus implements Publisher and Subscriber over watermill's in-memory
// GoChannel transport.
type Bus struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewBus creates an in-memory pub/sub bus.
func NewBus() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	return &Bus{pub: ch, sub: ch}
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wm.Metadata.Set(metaKeyUserID, msg.UserID)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	return b.pub.Publish(msg.Topic, wm)
}

// Subscribe implements Subscriber. The handler loop runs in its own
// goroutine until the subscription channel closes.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			msg := Message{
				Topic:    topic,
				UserID:   wm.Metadata.Get(metaKeyUserID),
				Payload:  wm.Payload,
				Metadata: map[string]string{},
			}
			for k, v := range wm.Metadata {
				if k != metaKeyUserID {
					msg.Metadata[k] = v
				}
			}

			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle message", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
			} else {
				wm.Ack()
			}
		}
	}()

	return nil
}

// Close shuts down the bus and all subscriptions.
func (b *Bus) Close() error {
	return b.sub.Close()
}
