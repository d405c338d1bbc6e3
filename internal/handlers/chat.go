package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/chat"
	"github.com/itsjmendez/adonde/internal/middleware"
)

// ChatHandler exposes the conversation, message, typing and presence
// REST endpoints. Live delivery happens over the websocket bridge; these
// endpoints serve initial loads and direct actions.
type ChatHandler struct {
	backend chat.Backend
}

// NewChatHandler creates the chat REST handler.
func NewChatHandler(backend chat.Backend) *ChatHandler {
	return &ChatHandler{backend: backend}
}

// ListConversations returns the caller's conversations with unread flags
// and last messages.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.CurrentUserID(c)

	conversations := h.backend.GetConversations(ctx, userID)
	type entry struct {
		chat.Conversation
		LastMessage *chat.Message `json:"last_message,omitempty"`
		HasUnread   bool          `json:"has_unread"`
	}
	out := make([]entry, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, entry{
			Conversation: conv,
			LastMessage:  h.backend.GetLastMessage(ctx, conv.ID),
			HasUnread:    h.backend.HasUnreadMessages(ctx, userID, conv.ID),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": out})
}

// ConversationByConnection resolves the conversation behind an accepted
// connection request.
func (h *ChatHandler) ConversationByConnection(c echo.Context) error {
	connectionID := c.Param("connectionID")
	convID := h.backend.GetConversationByConnectionID(c.Request().Context(), connectionID)
	if convID == "" {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "no conversation for connection"})
	}
	return c.JSON(http.StatusOK, map[string]string{"conversation_id": convID})
}

// isMember reports whether the caller participates in the conversation.
// Every conversation-scoped endpoint checks this first; non-members get
// 404 so conversation ids are not discoverable.
func (h *ChatHandler) isMember(c echo.Context, conversationID string) bool {
	return h.backend.IsParticipant(c.Request().Context(), middleware.CurrentUserID(c), conversationID)
}

func notAMember(c echo.Context) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "conversation not found"})
}

// GetMessages returns a history page, oldest first. Query params: limit
// (default 50) and before (RFC 3339 exclusive cursor).
func (h *ChatHandler) GetMessages(c echo.Context) error {
	convID := c.Param("id")
	if !h.isMember(c, convID) {
		return notAMember(c)
	}

	limit := chat.DefaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "limit must be 1-200"})
		}
		limit = n
	}

	var before time.Time
	if raw := c.QueryParam("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "before must be RFC 3339"})
		}
		before = t
	}

	msgs := h.backend.GetMessages(c.Request().Context(), convID, limit, before)
	return c.JSON(http.StatusOK, map[string]any{
		"messages": msgs,
		"has_more": len(msgs) == limit,
	})
}

// SendMessage posts a message to a conversation.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}

	id := h.backend.SendMessage(c.Request().Context(), c.Param("id"), middleware.CurrentUserID(c), req.Content)
	if id == "" {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Code: "send_failed", Message: "message was not delivered"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// MarkRead clears the caller's unread state for a conversation.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	ok := h.backend.MarkConversationRead(c.Request().Context(), middleware.CurrentUserID(c), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Code: "update_failed", Message: "could not mark read"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Unread reports whether a conversation has messages the caller has not
// seen.
func (h *ChatHandler) Unread(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	unread := h.backend.HasUnreadMessages(c.Request().Context(), middleware.CurrentUserID(c), c.Param("id"))
	return c.JSON(http.StatusOK, map[string]bool{"has_unread": unread})
}

// StartTyping marks the caller typing in a conversation.
func (h *ChatHandler) StartTyping(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	h.backend.StartTyping(c.Request().Context(), middleware.CurrentUserID(c), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// StopTyping clears the caller's typing state.
func (h *ChatHandler) StopTyping(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	h.backend.StopTyping(c.Request().Context(), middleware.CurrentUserID(c), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// GetTypers returns the conversation's current typers.
func (h *ChatHandler) GetTypers(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	typers := h.backend.GetTypers(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, map[string]any{"typers": typers})
}

// UpdatePresence sets the caller's presence status.
func (h *ChatHandler) UpdatePresence(c echo.Context) error {
	var req UpdatePresenceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}

	ok := h.backend.UpdatePresence(c.Request().Context(), middleware.CurrentUserID(c), chat.PresenceStatus(req.Status))
	if !ok {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Code: "update_failed", Message: "presence update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ConversationPresence returns presence for a conversation's
// participants.
func (h *ChatHandler) ConversationPresence(c echo.Context) error {
	if !h.isMember(c, c.Param("id")) {
		return notAMember(c)
	}
	presence := h.backend.GetConversationPresence(c.Request().Context(), c.Param("id"))

	now := time.Now()
	type entry struct {
		chat.UserPresence
		Display string `json:"display"`
	}
	out := make([]entry, 0, len(presence))
	for _, p := range presence {
		out = append(out, entry{UserPresence: p, Display: chat.StatusDisplay(p, now)})
	}
	return c.JSON(http.StatusOK, map[string]any{"presence": out})
}
