package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsjmendez/adonde/internal/chat"
	"github.com/itsjmendez/adonde/internal/middleware"
)

// stubBackend is a canned chat.Backend for handler tests.
type stubBackend struct {
	conversations []chat.Conversation
	messages      []chat.Message
	typers        []chat.TypingIndicator
	presence      []chat.UserPresence
	lastMessage   *chat.Message
	sendResult    string
	markReadOK    bool
	presenceOK    bool

	// nonMember rejects the membership check; the zero value admits, so
	// existing path tests exercise the authorized case.
	nonMember bool

	sentContent string
	sentConv    string
	sentBy      string
}

func (s *stubBackend) ConversationIDs(ctx context.Context, userID string) []string { return nil }

func (s *stubBackend) IsParticipant(ctx context.Context, userID, conversationID string) bool {
	return !s.nonMember
}

func (s *stubBackend) GetConversations(ctx context.Context, userID string) []chat.Conversation {
	return s.conversations
}

func (s *stubBackend) GetConversationByConnectionID(ctx context.Context, connectionID string) string {
	if connectionID == "connection_request:known" {
		return "conversation:a"
	}
	return ""
}

func (s *stubBackend) GetLastMessage(ctx context.Context, conversationID string) *chat.Message {
	return s.lastMessage
}

func (s *stubBackend) MarkConversationRead(ctx context.Context, userID, conversationID string) bool {
	return s.markReadOK
}

func (s *stubBackend) HasUnreadMessages(ctx context.Context, userID, conversationID string) bool {
	return true
}

func (s *stubBackend) GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []chat.Message {
	return s.messages
}

func (s *stubBackend) MessagesSince(ctx context.Context, conversationID string, after time.Time) []chat.Message {
	return nil
}

func (s *stubBackend) SendMessage(ctx context.Context, conversationID, senderID, content string) string {
	s.sentConv, s.sentBy, s.sentContent = conversationID, senderID, content
	return s.sendResult
}

func (s *stubBackend) StartTyping(ctx context.Context, userID, conversationID string) bool {
	return true
}

func (s *stubBackend) StopTyping(ctx context.Context, userID, conversationID string) bool {
	return true
}

func (s *stubBackend) GetTypers(ctx context.Context, conversationID string) []chat.TypingIndicator {
	return s.typers
}

func (s *stubBackend) UpdatePresence(ctx context.Context, userID string, status chat.PresenceStatus) bool {
	return s.presenceOK
}

func (s *stubBackend) GetConversationPresence(ctx context.Context, conversationID string) []chat.UserPresence {
	return s.presence
}

func (s *stubBackend) SenderProfile(ctx context.Context, userID string) (string, string, bool) {
	return "", "", false
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserContextKey, "user:alice")
	return c, rec
}

func TestSendMessageBindsSessionUser(t *testing.T) {
	backend := &stubBackend{sendResult: "chat_message:1"}
	h := NewChatHandler(backend)

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/conversation:a/messages",
		`{"content":"hello"}`)
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user:alice", backend.sentBy)
	assert.Equal(t, "conversation:a", backend.sentConv)
	assert.Equal(t, "hello", backend.sentContent)
}

func TestSendMessageRejectsEmptyAndOversized(t *testing.T) {
	h := NewChatHandler(&stubBackend{})

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/conversation:a/messages",
		`{"content":""}`)
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long, err := json.Marshal(map[string]string{"content": strings.Repeat("x", chat.MaxMessageLength+1)})
	require.NoError(t, err)
	c, rec = newTestContext(t, http.MethodPost, "/api/conversations/conversation:a/messages", string(long))
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageReportsBackendFailure(t *testing.T) {
	h := NewChatHandler(&stubBackend{sendResult: ""})

	c, rec := newTestContext(t, http.MethodPost, "/api/conversations/conversation:a/messages",
		`{"content":"hello"}`)
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetMessagesValidatesCursor(t *testing.T) {
	h := NewChatHandler(&stubBackend{})

	c, rec := newTestContext(t, http.MethodGet, "/api/conversations/conversation:a/messages?before=notatime", "")
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(t, http.MethodGet, "/api/conversations/conversation:a/messages?limit=0", "")
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesReportsHasMore(t *testing.T) {
	msgs := make([]chat.Message, 2)
	h := NewChatHandler(&stubBackend{messages: msgs})

	c, rec := newTestContext(t, http.MethodGet, "/api/conversations/conversation:a/messages?limit=2", "")
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.GetMessages(c))

	var body struct {
		HasMore bool `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.HasMore)
}

func TestConversationByConnection(t *testing.T) {
	h := NewChatHandler(&stubBackend{})

	c, rec := newTestContext(t, http.MethodGet, "/api/conversations/by-connection/connection_request:known", "")
	c.SetParamNames("connectionID")
	c.SetParamValues("connection_request:known")
	require.NoError(t, h.ConversationByConnection(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conversation:a")

	c, rec = newTestContext(t, http.MethodGet, "/api/conversations/by-connection/connection_request:other", "")
	c.SetParamNames("connectionID")
	c.SetParamValues("connection_request:other")
	require.NoError(t, h.ConversationByConnection(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationEndpointsRejectNonMembers(t *testing.T) {
	backend := &stubBackend{nonMember: true, sendResult: "chat_message:1", markReadOK: true}
	h := NewChatHandler(backend)

	endpoints := []struct {
		name   string
		method string
		body   string
		call   func(echo.Context) error
	}{
		{"get_messages", http.MethodGet, "", h.GetMessages},
		{"send_message", http.MethodPost, `{"content":"hello"}`, h.SendMessage},
		{"mark_read", http.MethodPost, "", h.MarkRead},
		{"unread", http.MethodGet, "", h.Unread},
		{"start_typing", http.MethodPost, "", h.StartTyping},
		{"stop_typing", http.MethodPost, "", h.StopTyping},
		{"get_typers", http.MethodGet, "", h.GetTypers},
		{"presence", http.MethodGet, "", h.ConversationPresence},
	}

	for _, ep := range endpoints {
		c, rec := newTestContext(t, ep.method, "/api/conversations/conversation:hidden", ep.body)
		c.SetParamNames("id")
		c.SetParamValues("conversation:hidden")
		require.NoError(t, ep.call(c), ep.name)
		assert.Equal(t, http.StatusNotFound, rec.Code, ep.name)
	}
	assert.Empty(t, backend.sentContent)
}

func TestUpdatePresenceValidatesStatus(t *testing.T) {
	h := NewChatHandler(&stubBackend{presenceOK: true})

	c, rec := newTestContext(t, http.MethodPost, "/api/presence", `{"status":"busy"}`)
	require.NoError(t, h.UpdatePresence(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(t, http.MethodPost, "/api/presence", `{"status":"away"}`)
	require.NoError(t, h.UpdatePresence(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConversationPresenceIncludesDisplay(t *testing.T) {
	h := NewChatHandler(&stubBackend{
		presence: []chat.UserPresence{
			{UserID: "user:bob", Status: chat.StatusOffline, LastSeen: time.Now().Add(-5 * time.Minute)},
		},
	})

	c, rec := newTestContext(t, http.MethodGet, "/api/conversations/conversation:a/presence", "")
	c.SetParamNames("id")
	c.SetParamValues("conversation:a")
	require.NoError(t, h.ConversationPresence(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "5m ago")
}
