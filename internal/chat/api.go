package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/itsjmendez/adonde/internal/database"
	"github.com/surrealdb/surrealdb.go"
)

// Backend is the chat platform contract. Every operation converts backend
// failures into sentinel values (empty/nil/false) at this boundary; callers
// never see a raw transport error. Not-found is a valid outcome, not a
// failure.
type Backend interface {
	ConversationIDs(ctx context.Context, userID string) []string
	IsParticipant(ctx context.Context, userID, conversationID string) bool
	GetConversations(ctx context.Context, userID string) []Conversation
	GetConversationByConnectionID(ctx context.Context, connectionID string) string
	GetLastMessage(ctx context.Context, conversationID string) *Message
	MarkConversationRead(ctx context.Context, userID, conversationID string) bool
	HasUnreadMessages(ctx context.Context, userID, conversationID string) bool

	GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []Message
	MessagesSince(ctx context.Context, conversationID string, after time.Time) []Message
	SendMessage(ctx context.Context, conversationID, senderID, content string) string

	StartTyping(ctx context.Context, userID, conversationID string) bool
	StopTyping(ctx context.Context, userID, conversationID string) bool
	GetTypers(ctx context.Context, conversationID string) []TypingIndicator

	UpdatePresence(ctx context.Context, userID string, status PresenceStatus) bool
	GetConversationPresence(ctx context.Context, conversationID string) []UserPresence

	SenderProfile(ctx context.Context, userID string) (name, avatarURL string, ok bool)
}

// API implements Backend over SurrealDB. Table queries go straight at the
// relations; cross-cutting operations go through named server-side
// functions (fn::*), which the client treats as opaque.
type API struct {
	db  *database.Connection
	log *slog.Logger
}

// NewAPI creates the backend wrapper.
func NewAPI(db *database.Connection) *API {
	return &API{
		db:  db,
		log: slog.Default().With("service", "chat_api"),
	}
}

// ConversationIDs resolves every conversation the user participates in.
// A failed load yields an empty set: degraded but non-fatal.
func (a *API) ConversationIDs(ctx context.Context, userID string) []string {
	type row struct {
		ID string `json:"id"`
	}
	var rows []row
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		rows, qerr = database.Query[row](ctx, conn,
			"SELECT id FROM conversation WHERE participant1_id = $user OR participant2_id = $user",
			map[string]any{"user": userID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to load user conversations", "user_id", userID, "error", err)
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

// IsParticipant reports whether the user is one of the conversation's two
// participants. Query failures report false: authorization fails closed.
func (a *API) IsParticipant(ctx context.Context, userID, conversationID string) bool {
	type row struct {
		ID string `json:"id"`
	}
	var match *row
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		match, qerr = database.QueryOne[row](ctx, conn,
			"SELECT id FROM conversation WHERE id = $conversation AND (participant1_id = $user OR participant2_id = $user)",
			map[string]any{"user": userID, "conversation": conversationID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to check conversation membership", "user_id", userID, "conversation_id", conversationID, "error", err)
		return false
	}
	return match != nil
}

// GetConversations lists the user's conversations, most recently active
// first.
func (a *API) GetConversations(ctx context.Context, userID string) []Conversation {
	var convs []Conversation
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		convs, qerr = database.Query[Conversation](ctx, conn,
			"SELECT * FROM conversation WHERE participant1_id = $user OR participant2_id = $user ORDER BY last_message_at DESC",
			map[string]any{"user": userID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to list conversations", "user_id", userID, "error", err)
		return nil
	}
	return convs
}

// GetConversationByConnectionID resolves a connection request id to its
// conversation id, or "" when there is none.
func (a *API) GetConversationByConnectionID(ctx context.Context, connectionID string) string {
	var id string
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		id, qerr = database.Scalar[string](ctx, conn,
			"RETURN fn::conversation_by_connection($request)",
			map[string]any{"request": connectionID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to resolve conversation by connection", "connection_id", connectionID, "error", err)
		return ""
	}
	return id
}

// GetLastMessage returns the newest message of a conversation with sender
// display fields filled in, or nil when the conversation is empty.
func (a *API) GetLastMessage(ctx context.Context, conversationID string) *Message {
	msgs := a.GetMessages(ctx, conversationID, 1, time.Time{})
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

// MarkConversationRead records the user's read position.
func (a *API) MarkConversationRead(ctx context.Context, userID, conversationID string) bool {
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn,
			"RETURN fn::mark_conversation_read($user, $conversation)",
			map[string]any{"user": userID, "conversation": conversationID})
	})
	if err != nil {
		a.log.Error("Failed to mark conversation read", "conversation_id", conversationID, "error", err)
		return false
	}
	return true
}

// HasUnreadMessages reports whether the conversation has messages newer
// than the user's read position.
func (a *API) HasUnreadMessages(ctx context.Context, userID, conversationID string) bool {
	var unread bool
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		unread, qerr = database.Scalar[bool](ctx, conn,
			"RETURN fn::has_unread_messages($user, $conversation)",
			map[string]any{"user": userID, "conversation": conversationID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to check unread messages", "conversation_id", conversationID, "error", err)
		return false
	}
	return unread
}

// GetMessages fetches up to limit messages in chronological order. When
// before is non-zero only strictly older messages are returned, which
// makes it an exclusive pagination cursor.
func (a *API) GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []Message {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := "SELECT * FROM chat_message WHERE conversation_id = $conversation"
	params := map[string]any{"conversation": conversationID, "limit": limit}
	if !before.IsZero() {
		query += " AND created_at < $before"
		params["before"] = before
	}
	query += " ORDER BY created_at DESC LIMIT $limit"

	var msgs []Message
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		msgs, qerr = database.Query[Message](ctx, conn, query, params)
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to get messages", "conversation_id", conversationID, "error", err)
		return nil
	}

	// Fetched newest-first; reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	a.fillSenderFields(ctx, msgs)
	return msgs
}

// MessagesSince fetches messages strictly newer than after, oldest first.
// This is the reconciliation query behind the polling fallback.
func (a *API) MessagesSince(ctx context.Context, conversationID string, after time.Time) []Message {
	var msgs []Message
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		msgs, qerr = database.Query[Message](ctx, conn,
			"SELECT * FROM chat_message WHERE conversation_id = $conversation AND created_at > $after ORDER BY created_at ASC",
			map[string]any{"conversation": conversationID, "after": after})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to fetch messages since", "conversation_id", conversationID, "error", err)
		return nil
	}
	a.fillSenderFields(ctx, msgs)
	return msgs
}

// SendMessage performs the authoritative write and returns the assigned
// message id, or "" on failure. It never updates local state; optimistic
// UI and reconciliation are the caller's responsibility.
func (a *API) SendMessage(ctx context.Context, conversationID, senderID, content string) string {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > MaxMessageLength {
		return ""
	}

	type created struct {
		ID string `json:"id"`
	}
	var row *created
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		row, qerr = database.QueryOne[created](ctx, conn,
			`CREATE chat_message SET
				conversation_id = $conversation,
				sender_id = $sender,
				content = $content,
				message_type = 'text',
				created_at = time::now(),
				updated_at = time::now()
			RETURN id`,
			map[string]any{"conversation": conversationID, "sender": senderID, "content": content})
		return qerr
	})
	if err != nil || row == nil {
		a.log.Error("Failed to send message", "conversation_id", conversationID, "error", err)
		return ""
	}
	return row.ID
}

// StartTyping marks the user as typing in the conversation. The record
// expires server-side after roughly ten seconds.
func (a *API) StartTyping(ctx context.Context, userID, conversationID string) bool {
	return a.execFn(ctx, "RETURN fn::start_typing($user, $conversation)", userID, conversationID, "start typing")
}

// StopTyping clears the user's typing record.
func (a *API) StopTyping(ctx context.Context, userID, conversationID string) bool {
	return a.execFn(ctx, "RETURN fn::stop_typing($user, $conversation)", userID, conversationID, "stop typing")
}

func (a *API) execFn(ctx context.Context, query, userID, conversationID, op string) bool {
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn, query,
			map[string]any{"user": userID, "conversation": conversationID})
	})
	if err != nil {
		a.log.Error("Failed to "+op, "conversation_id", conversationID, "error", err)
		return false
	}
	return true
}

// GetTypers returns the full snapshot of users currently typing in the
// conversation.
func (a *API) GetTypers(ctx context.Context, conversationID string) []TypingIndicator {
	var typers []TypingIndicator
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		typers, qerr = database.Scalar[[]TypingIndicator](ctx, conn,
			"RETURN fn::conversation_typers($conversation)",
			map[string]any{"conversation": conversationID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to get typers", "conversation_id", conversationID, "error", err)
		return nil
	}
	return typers
}

// UpdatePresence pushes the user's status.
func (a *API) UpdatePresence(ctx context.Context, userID string, status PresenceStatus) bool {
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn,
			"RETURN fn::update_presence($user, $status)",
			map[string]any{"user": userID, "status": string(status)})
	})
	if err != nil {
		a.log.Error("Failed to update presence", "user_id", userID, "status", status, "error", err)
		return false
	}
	return true
}

// GetConversationPresence returns the presence snapshot joined over the
// conversation's participants.
func (a *API) GetConversationPresence(ctx context.Context, conversationID string) []UserPresence {
	var presence []UserPresence
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		presence, qerr = database.Scalar[[]UserPresence](ctx, conn,
			"RETURN fn::conversation_presence($conversation)",
			map[string]any{"conversation": conversationID})
		return qerr
	})
	if err != nil {
		a.log.Error("Failed to get conversation presence", "conversation_id", conversationID, "error", err)
		return nil
	}
	return presence
}

// SenderProfile fetches the denormalized display fields for a sender.
func (a *API) SenderProfile(ctx context.Context, userID string) (string, string, bool) {
	type row struct {
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	var p *row
	err := a.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		p, qerr = database.QueryOne[row](ctx, conn,
			"SELECT display_name, avatar_url FROM profile WHERE id = $user",
			map[string]any{"user": userID})
		return qerr
	})
	if err != nil || p == nil {
		return "", "", false
	}
	return p.DisplayName, p.AvatarURL, true
}

// fillSenderFields resolves missing denormalized sender info on fetched
// messages. Lookup failures leave the placeholder.
func (a *API) fillSenderFields(ctx context.Context, msgs []Message) {
	cache := map[string][2]string{}
	for i := range msgs {
		if msgs[i].SenderName != "" {
			continue
		}
		if cached, ok := cache[msgs[i].SenderID]; ok {
			msgs[i].SenderName, msgs[i].SenderAvatarURL = cached[0], cached[1]
			continue
		}
		name, avatar, ok := a.SenderProfile(ctx, msgs[i].SenderID)
		if !ok {
			name = "Unknown"
		}
		cache[msgs[i].SenderID] = [2]string{name, avatar}
		msgs[i].SenderName, msgs[i].SenderAvatarURL = name, avatar
	}
}
