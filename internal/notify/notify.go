// Package notify turns bus events into per-user notification feeds.
// Services publish domain events; the center subscribes and keeps a
// bounded recent history each user can poll.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsjmendez/adonde/internal/pubsub"
)

// TopicConnections carries connection request lifecycle events.
const TopicConnections = "connections.events"

// maxPerUser bounds each user's retained notifications.
const maxPerUser = 50

// Kind of notification.
type Kind string

const (
	KindConnectionRequested Kind = "connection_requested"
	KindConnectionAccepted  Kind = "connection_accepted"
	KindConnectionDeclined  Kind = "connection_declined"
)

// Event is the bus payload for a connection lifecycle change. UserID on
// the bus message addresses the recipient.
type Event struct {
	Kind      Kind   `json:"kind"`
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id"`
	Message   string `json:"message,omitempty"`
}

// Notification is one entry in a user's feed.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	RequestID string    `json:"request_id"`
	ActorID   string    `json:"actor_id"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Center consumes events and serves per-user feeds.
type Center struct {
	log *slog.Logger

	mu      sync.Mutex
	perUser map[string][]Notification
}

// NewCenter creates an empty center.
func NewCenter() *Center {
	return &Center{
		log:     slog.Default().With("service", "notify"),
		perUser: make(map[string][]Notification),
	}
}

// Start subscribes the center to the connection events topic.
func (c *Center) Start(ctx context.Context, sub pubsub.Subscriber) error {
	return sub.Subscribe(ctx, TopicConnections, c.handle)
}

func (c *Center) handle(ctx context.Context, msg pubsub.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.log.Warn("Dropping undecodable event", "topic", msg.Topic, "error", err)
		return nil
	}
	if msg.UserID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	feed := append(c.perUser[msg.UserID], Notification{
		ID:        uuid.NewString(),
		Kind:      ev.Kind,
		RequestID: ev.RequestID,
		ActorID:   ev.ActorID,
		Message:   ev.Message,
		CreatedAt: time.Now().UTC(),
	})
	if len(feed) > maxPerUser {
		feed = feed[len(feed)-maxPerUser:]
	}
	c.perUser[msg.UserID] = feed
	return nil
}

// ListForUser returns the user's notifications, newest last.
func (c *Center) ListForUser(userID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.perUser[userID]))
	copy(out, c.perUser[userID])
	return out
}

// Clear empties the user's feed.
func (c *Center) Clear(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perUser, userID)
}

// PublishConnectionEvent is the producer-side helper: it addresses the
// event to recipientID and publishes it, best-effort.
func PublishConnectionEvent(ctx context.Context, pub pubsub.Publisher, recipientID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := pub.Publish(ctx, pubsub.Message{
		Topic:   TopicConnections,
		UserID:  recipientID,
		Payload: payload,
	}); err != nil {
		slog.Default().Warn("Failed to publish connection event", "kind", ev.Kind, "error", err)
	}
}
