package chat

import "time"

// MessageKind distinguishes user text from system notices.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// MaxMessageLength bounds the content of a single chat message.
const MaxMessageLength = 1000

// Message is one append-only record in a conversation. Until the backend
// confirms a send, a locally generated placeholder id (see TempIDPrefix)
// stands in for the real one.
type Message struct {
	ID              string      `json:"id"`
	ConversationID  string      `json:"conversation_id"`
	SenderID        string      `json:"sender_id"`
	Content         string      `json:"content"`
	Kind            MessageKind `json:"message_type"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	SenderName      string      `json:"sender_name,omitempty"`
	SenderAvatarURL string      `json:"sender_avatar_url,omitempty"`
}

// ConversationKind is direct (1:1) or group.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is the chat channel backing one accepted connection. It is
// created by the backend when a connection request is accepted and is
// read-only here.
type Conversation struct {
	ID             string           `json:"id"`
	Kind           ConversationKind `json:"type"`
	Name           string           `json:"name,omitempty"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	LastMessageAt  time.Time        `json:"last_message_at"`
	Participant1ID string           `json:"participant1_id,omitempty"`
	Participant2ID string           `json:"participant2_id,omitempty"`
}

// TypingIndicator is an ephemeral per-(conversation, user) record. The
// backend expires it after roughly ten seconds of inactivity.
type TypingIndicator struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// PresenceStatus is a user's liveness.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// UserPresence is the shared per-user status, queried per conversation as
// a join over its participants.
type UserPresence struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"last_seen"`
}

// Callback signatures for fan-out subscriptions. Message callbacks get
// each confirmed message in arrival order; typing and presence callbacks
// get the full current snapshot on every change, never a delta.
type (
	MessageCallback  func(Message)
	TypingCallback   func([]TypingIndicator)
	PresenceCallback func([]UserPresence)
)
