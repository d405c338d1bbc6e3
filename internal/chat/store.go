package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks a locally generated placeholder id on an optimistic
// message that the backend has not yet confirmed.
const TempIDPrefix = "temp-"

// DefaultPageSize is the history page size.
const DefaultPageSize = 50

// conversationAPI is the slice of the dispatcher a MessageStore needs.
type conversationAPI interface {
	GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []Message
	SendMessage(ctx context.Context, conversationID, content string) string
}

// MessageStore presents a single chronologically ordered, deduplicated
// message sequence for one conversation, merging paginated history,
// push-delivered confirmations and locally originated optimistic entries.
//
// A locally sent message moves through
// composing -> optimistic-pending -> confirmed | failed-removed:
// on success the placeholder id is swapped in place for the real one, on
// failure the entry is removed and the typed text restored to the input.
type MessageStore struct {
	api            conversationAPI
	conversationID string
	userID         string
	userName       string

	mu       sync.Mutex
	messages []Message
	input    string
	sending  bool
	loading  bool
	hasMore  bool
	closed   bool
	pageSize int
}

// NewMessageStore creates a store for one conversation view. userID and
// userName identify the local sender for optimistic entries.
func NewMessageStore(api conversationAPI, conversationID, userID, userName string) *MessageStore {
	return &MessageStore{
		api:            api,
		conversationID: conversationID,
		userID:         userID,
		userName:       userName,
		hasMore:        true,
		pageSize:       DefaultPageSize,
	}
}

// LoadInitial fetches the newest page of history, replacing any current
// content.
func (s *MessageStore) LoadInitial(ctx context.Context) {
	s.mu.Lock()
	if s.loading || s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()

	msgs := s.api.GetMessages(ctx, s.conversationID, s.pageSize, time.Time{})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		return
	}
	s.messages = msgs
	s.hasMore = len(msgs) == s.pageSize
}

// LoadMore prepends the page strictly older than the oldest loaded
// message. Once a short page comes back, further calls are no-ops.
func (s *MessageStore) LoadMore(ctx context.Context) {
	s.mu.Lock()
	if !s.hasMore || s.loading || s.closed || len(s.messages) == 0 {
		s.mu.Unlock()
		return
	}
	s.loading = true
	oldest := s.messages[0].CreatedAt
	s.mu.Unlock()

	older := s.api.GetMessages(ctx, s.conversationID, s.pageSize, oldest)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		return
	}
	if len(older) == 0 {
		s.hasMore = false
		return
	}
	s.messages = append(older, s.messages...)
	s.hasMore = len(older) == s.pageSize
}

// SetInput updates the composing text.
func (s *MessageStore) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the composing text.
func (s *MessageStore) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Send submits the composing text. The entry appears immediately under a
// placeholder id and the input clears; confirmation swaps the real id in
// place, failure removes the entry and restores the input for retry.
func (s *MessageStore) Send(ctx context.Context) {
	s.mu.Lock()
	content := strings.TrimSpace(s.input)
	if content == "" || s.sending || s.closed {
		s.mu.Unlock()
		return
	}

	tempID := TempIDPrefix + uuid.New().String()
	now := time.Now().UTC()
	s.messages = append(s.messages, Message{
		ID:             tempID,
		ConversationID: s.conversationID,
		SenderID:       s.userID,
		Content:        content,
		Kind:           MessageText,
		CreatedAt:      now,
		UpdatedAt:      now,
		SenderName:     s.userName,
	})
	s.input = ""
	s.sending = true
	s.mu.Unlock()

	messageID := s.api.SendMessage(ctx, s.conversationID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if messageID != "" {
		// Targeted in-place id swap: position and content stay put, so the
		// view never flickers or duplicates.
		for i := range s.messages {
			if s.messages[i].ID == tempID {
				s.messages[i].ID = messageID
				break
			}
		}
		return
	}

	// Failed: drop the ghost entry and give the text back for retry.
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != tempID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	if s.input == "" {
		s.input = content
	}
}

// HandleIncoming merges one push-delivered message. Messages from the
// local user are discarded since the optimistic path already represents
// them, and ids already present are discarded, which makes delivery
// tolerant of duplicates and reordering.
func (s *MessageStore) HandleIncoming(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if msg.SenderID == s.userID {
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			return
		}
	}
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the current sequence.
func (s *MessageStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// HasMore reports whether older history may remain.
func (s *MessageStore) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Sending reports whether a send is in flight.
func (s *MessageStore) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Close marks the view unmounted. Late deliveries and in-flight loads
// become no-ops.
func (s *MessageStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
