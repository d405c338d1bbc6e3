package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"github.com/itsjmendez/adonde/internal/database"
)

const (
	// seenTTL is how long a delivered message id is remembered so the
	// polling fallback and the push path never double-deliver.
	seenTTL = 5 * time.Minute

	// DefaultPollInterval paces the reconciliation pass that covers for a
	// silently failed push subscription.
	DefaultPollInterval = 15 * time.Second
)

// Dispatcher owns the single multiplexed change-feed subscription for one
// signed-in user and routes every event to the per-conversation listeners
// registered with it. N open conversation views share this one connection.
//
// It is the session-scoped facade over Backend: operations that need the
// current user id (send, typing, presence) bind it here.
type Dispatcher struct {
	backend      Backend
	feed         database.Feed
	log          *slog.Logger
	pollInterval time.Duration

	// initMu serializes Initialize/Cleanup end to end so two sockets of
	// the same user cannot interleave the idempotence check with the
	// subscribe sequence and leak live queries.
	initMu sync.Mutex

	mu              sync.Mutex
	userID          string
	conversationIDs map[string]struct{}
	messageSubs     map[string][]messageSub
	typingSubs      map[string][]typingSub
	presenceSubs    map[string][]presenceSub
	feedSubs        []*database.FeedSubscription
	lastDelivered   map[string]time.Time
	pollCancel      context.CancelFunc

	seen     geche.Geche[string, struct{}]
	seenStop context.CancelFunc
}

type messageSub struct {
	token string
	fn    MessageCallback
}

type typingSub struct {
	token string
	fn    TypingCallback
}

type presenceSub struct {
	token string
	fn    PresenceCallback
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval overrides the reconciliation interval. Zero disables
// the polling fallback entirely.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.pollInterval = d
	}
}

// NewDispatcher creates an uninitialized dispatcher. It delivers nothing
// until Initialize is called.
func NewDispatcher(backend Backend, feed database.Feed, opts ...DispatcherOption) *Dispatcher {
	seenCtx, seenStop := context.WithCancel(context.Background())
	d := &Dispatcher{
		backend:         backend,
		feed:            feed,
		log:             slog.Default().With("service", "chat_dispatcher"),
		pollInterval:    DefaultPollInterval,
		conversationIDs: make(map[string]struct{}),
		messageSubs:     make(map[string][]messageSub),
		typingSubs:      make(map[string][]typingSub),
		presenceSubs:    make(map[string][]presenceSub),
		lastDelivered:   make(map[string]time.Time),
		seen:            geche.NewMapTTLCache[string, struct{}](seenCtx, seenTTL, time.Minute),
		seenStop:        seenStop,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// UserID returns the user this dispatcher is initialized for, or "".
func (d *Dispatcher) UserID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userID
}

// Covers reports whether a conversation is in this user's resolved set.
// Events for conversations outside it are never delivered, so callers can
// use this as the membership gate before binding views to the dispatcher.
func (d *Dispatcher) Covers(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.conversationIDs[conversationID]
	return ok
}

// Initialize resolves the user's conversation set and opens the live
// subscription covering messages, typing and presence. Calling it again
// for the same user is a no-op; calling it for a different user tears the
// previous subscription down first.
func (d *Dispatcher) Initialize(ctx context.Context, userID string) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	d.mu.Lock()
	if d.userID == userID && len(d.feedSubs) > 0 {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	// Re-initializing for a new user must release the old connection so we
	// never deliver another user's events.
	d.teardown()

	ids := d.backend.ConversationIDs(ctx, userID)
	if ids == nil {
		d.log.Warn("Conversation list unavailable, continuing with empty set", "user_id", userID)
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	var subs []*database.FeedSubscription

	// Messages: only creates, filtered server-side to this user's
	// conversations so the client is not fed the whole table.
	msgSub, err := d.feed.Subscribe(ctx, "chat_message", &database.FeedFilter{
		Where:  "conversation_id IN $conversations",
		Params: map[string]any{"conversations": ids},
	}, func(ctx context.Context, action database.ChangeAction, data any) {
		if action != database.ActionCreate {
			return
		}
		d.handleMessageEvent(ctx, data)
	})
	if err != nil {
		d.log.Error("Failed to subscribe to message feed", "user_id", userID, "error", err)
	} else {
		subs = append(subs, msgSub)
	}

	// Typing: every change matters, including deletes (snapshot refetch).
	typingSub, err := d.feed.Subscribe(ctx, "typing_indicator", nil,
		func(ctx context.Context, action database.ChangeAction, data any) {
			d.handleTypingEvent(ctx, data)
		})
	if err != nil {
		d.log.Error("Failed to subscribe to typing feed", "user_id", userID, "error", err)
	} else {
		subs = append(subs, typingSub)
	}

	presenceSub, err := d.feed.Subscribe(ctx, "user_presence", nil,
		func(ctx context.Context, action database.ChangeAction, data any) {
			if action == database.ActionUpdate || action == database.ActionCreate {
				d.handlePresenceEvent(ctx)
			}
		})
	if err != nil {
		d.log.Error("Failed to subscribe to presence feed", "user_id", userID, "error", err)
	} else {
		subs = append(subs, presenceSub)
	}

	// Seed the per-conversation watermark now so the poller reconciles
	// messages from this point even if push never delivers one (a dead
	// subscription is exactly what polling covers). Anything older is the
	// initial history load's window.
	now := time.Now()
	watermarks := make(map[string]time.Time, len(idSet))
	for id := range idSet {
		watermarks[id] = now
	}

	d.mu.Lock()
	d.userID = userID
	d.conversationIDs = idSet
	d.feedSubs = subs
	d.lastDelivered = watermarks
	d.mu.Unlock()

	d.startPolling()

	d.log.Info("Chat dispatcher initialized", "user_id", userID, "conversations", len(idSet))
	return nil
}

// SubscribeToMessages registers a callback for confirmed messages in one
// conversation and returns the token to unsubscribe with. Multiple views
// may register for the same conversation.
func (d *Dispatcher) SubscribeToMessages(conversationID string, fn MessageCallback) string {
	token := uuid.New().String()
	d.mu.Lock()
	d.messageSubs[conversationID] = append(d.messageSubs[conversationID], messageSub{token: token, fn: fn})
	d.mu.Unlock()
	return token
}

// UnsubscribeFromMessages removes a single registration, preserving any
// co-registered listeners.
func (d *Dispatcher) UnsubscribeFromMessages(conversationID, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.messageSubs[conversationID][:0]
	for _, s := range d.messageSubs[conversationID] {
		if s.token != token {
			subs = append(subs, s)
		}
	}
	d.messageSubs[conversationID] = subs
}

// SubscribeToTyping registers a snapshot callback for a conversation's
// active typers.
func (d *Dispatcher) SubscribeToTyping(conversationID string, fn TypingCallback) string {
	token := uuid.New().String()
	d.mu.Lock()
	d.typingSubs[conversationID] = append(d.typingSubs[conversationID], typingSub{token: token, fn: fn})
	d.mu.Unlock()
	return token
}

// UnsubscribeFromTyping removes a typing registration.
func (d *Dispatcher) UnsubscribeFromTyping(conversationID, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.typingSubs[conversationID][:0]
	for _, s := range d.typingSubs[conversationID] {
		if s.token != token {
			subs = append(subs, s)
		}
	}
	d.typingSubs[conversationID] = subs
}

// SubscribeToPresence registers a snapshot callback for a conversation's
// participant presence.
func (d *Dispatcher) SubscribeToPresence(conversationID string, fn PresenceCallback) string {
	token := uuid.New().String()
	d.mu.Lock()
	d.presenceSubs[conversationID] = append(d.presenceSubs[conversationID], presenceSub{token: token, fn: fn})
	d.mu.Unlock()
	return token
}

// UnsubscribeFromPresence removes a presence registration.
func (d *Dispatcher) UnsubscribeFromPresence(conversationID, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.presenceSubs[conversationID][:0]
	for _, s := range d.presenceSubs[conversationID] {
		if s.token != token {
			subs = append(subs, s)
		}
	}
	d.presenceSubs[conversationID] = subs
}

// SendMessage writes through to the backend with this session's user as
// the sender. Returns "" on failure; optimistic state is the caller's.
func (d *Dispatcher) SendMessage(ctx context.Context, conversationID, content string) string {
	return d.backend.SendMessage(ctx, conversationID, d.UserID(), content)
}

// GetMessages is a paginated history fetch, chronological order.
func (d *Dispatcher) GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []Message {
	return d.backend.GetMessages(ctx, conversationID, limit, before)
}

// GetTypers returns the current typing snapshot.
func (d *Dispatcher) GetTypers(ctx context.Context, conversationID string) []TypingIndicator {
	return d.backend.GetTypers(ctx, conversationID)
}

// GetConversationPresence returns the current presence snapshot.
func (d *Dispatcher) GetConversationPresence(ctx context.Context, conversationID string) []UserPresence {
	return d.backend.GetConversationPresence(ctx, conversationID)
}

// MarkConversationRead clears this session's user unread state.
func (d *Dispatcher) MarkConversationRead(ctx context.Context, conversationID string) bool {
	return d.backend.MarkConversationRead(ctx, d.UserID(), conversationID)
}

// Profile returns the display name and avatar of this session's user,
// best-effort.
func (d *Dispatcher) Profile(ctx context.Context) (name, avatarURL string) {
	name, avatarURL, ok := d.backend.SenderProfile(ctx, d.UserID())
	if !ok {
		return "", ""
	}
	return name, avatarURL
}

// StartTyping marks this session's user as typing.
func (d *Dispatcher) StartTyping(ctx context.Context, conversationID string) bool {
	return d.backend.StartTyping(ctx, d.UserID(), conversationID)
}

// StopTyping clears this session's user typing record.
func (d *Dispatcher) StopTyping(ctx context.Context, conversationID string) bool {
	return d.backend.StopTyping(ctx, d.UserID(), conversationID)
}

// UpdatePresence pushes this session's user status.
func (d *Dispatcher) UpdatePresence(ctx context.Context, status PresenceStatus) bool {
	return d.backend.UpdatePresence(ctx, d.UserID(), status)
}

// Cleanup tears down the subscription and clears all registries. Safe to
// call repeatedly and on a dispatcher that was never initialized.
func (d *Dispatcher) Cleanup() {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	d.teardown()
	d.seenStop()
}

func (d *Dispatcher) teardown() {
	d.mu.Lock()
	subs := d.feedSubs
	cancel := d.pollCancel
	d.feedSubs = nil
	d.pollCancel = nil
	d.userID = ""
	d.conversationIDs = make(map[string]struct{})
	d.messageSubs = make(map[string][]messageSub)
	d.typingSubs = make(map[string][]typingSub)
	d.presenceSubs = make(map[string][]presenceSub)
	d.lastDelivered = make(map[string]time.Time)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range subs {
		if err := d.feed.Unsubscribe(s.ID); err != nil {
			d.log.Warn("Failed to unsubscribe from feed", "sub_id", s.ID, "error", err)
		}
	}
}

// handleMessageEvent decodes a pushed message and routes it. Push and
// poll both funnel through deliverMessage, so the dedup rule is shared.
func (d *Dispatcher) handleMessageEvent(ctx context.Context, data any) {
	var msg Message
	if err := decodePayload(data, &msg); err != nil {
		d.log.Warn("Dropping undecodable message event", "error", err)
		return
	}
	d.deliverMessage(ctx, msg)
}

func (d *Dispatcher) deliverMessage(ctx context.Context, msg Message) {
	if msg.ID == "" || msg.ConversationID == "" {
		return
	}

	d.mu.Lock()
	if _, known := d.conversationIDs[msg.ConversationID]; !known {
		// Not one of this user's conversations: drop, not an error.
		d.mu.Unlock()
		return
	}
	if _, err := d.seen.Get(msg.ID); err == nil {
		d.mu.Unlock()
		return
	}
	d.seen.Set(msg.ID, struct{}{})
	if msg.CreatedAt.After(d.lastDelivered[msg.ConversationID]) {
		d.lastDelivered[msg.ConversationID] = msg.CreatedAt
	}
	subs := make([]messageSub, len(d.messageSubs[msg.ConversationID]))
	copy(subs, d.messageSubs[msg.ConversationID])
	d.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	// Enrichment failure must not block delivery.
	if msg.SenderName == "" {
		name, avatar, ok := d.backend.SenderProfile(ctx, msg.SenderID)
		if !ok {
			name = "Unknown"
		}
		msg.SenderName, msg.SenderAvatarURL = name, avatar
	}

	for _, s := range subs {
		s.fn(msg)
	}
}

// handleTypingEvent refetches and fans out the full typer snapshot for
// the affected conversation. Snapshots are idempotent under reordering,
// which is why this is not a delta.
func (d *Dispatcher) handleTypingEvent(ctx context.Context, data any) {
	var payload struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := decodePayload(data, &payload); err != nil || payload.ConversationID == "" {
		return
	}

	d.mu.Lock()
	subs := make([]typingSub, len(d.typingSubs[payload.ConversationID]))
	copy(subs, d.typingSubs[payload.ConversationID])
	d.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	typers := d.backend.GetTypers(ctx, payload.ConversationID)
	for _, s := range subs {
		s.fn(typers)
	}
}

// handlePresenceEvent pushes a fresh presence snapshot to every
// conversation that has presence listeners.
func (d *Dispatcher) handlePresenceEvent(ctx context.Context) {
	d.mu.Lock()
	targets := make(map[string][]presenceSub, len(d.presenceSubs))
	for convID, subs := range d.presenceSubs {
		if len(subs) == 0 {
			continue
		}
		cp := make([]presenceSub, len(subs))
		copy(cp, subs)
		targets[convID] = cp
	}
	d.mu.Unlock()

	for convID, subs := range targets {
		snapshot := d.backend.GetConversationPresence(ctx, convID)
		for _, s := range subs {
			s.fn(snapshot)
		}
	}
}

// startPolling runs the reconciliation pass: re-fetch messages newer than
// the last delivered timestamp for every conversation with listeners and
// merge them through the same dedup path as push delivery.
func (d *Dispatcher) startPolling() {
	if d.pollInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.pollCancel = cancel
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.pollOnce(ctx)
			}
		}
	}()
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	d.mu.Lock()
	targets := make(map[string]time.Time)
	for convID, subs := range d.messageSubs {
		if len(subs) == 0 {
			continue
		}
		if _, known := d.conversationIDs[convID]; !known {
			continue
		}
		targets[convID] = d.lastDelivered[convID]
	}
	d.mu.Unlock()

	for convID, since := range targets {
		for _, msg := range d.backend.MessagesSince(ctx, convID, since) {
			d.deliverMessage(ctx, msg)
		}
	}
}

// decodePayload converts a change-feed payload (a decoded map) into a
// typed struct via a JSON round trip.
func decodePayload(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
