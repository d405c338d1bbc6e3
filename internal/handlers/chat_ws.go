package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/chat"
	"github.com/itsjmendez/adonde/internal/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 64
)

// ChatSocketHandler bridges one conversation view to the chat fan-out.
// Each accepted socket gets its own message store, typing tracker and
// presence tracker wired to the user's shared dispatcher.
type ChatSocketHandler struct {
	manager  *chat.Manager
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewChatSocketHandler creates the websocket handler.
func NewChatSocketHandler(manager *chat.Manager) *ChatSocketHandler {
	return &ChatSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: slog.Default().With("handler", "chat_ws"),
	}
}

// inboundFrame is a client-to-server event.
type inboundFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Visible bool   `json:"visible,omitempty"`
}

// outboundFrame is a server-to-client event. Exactly one payload field
// is set, matching Type.
type outboundFrame struct {
	Type     string                 `json:"type"`
	Messages []chat.Message         `json:"messages,omitempty"`
	HasMore  *bool                  `json:"has_more,omitempty"`
	Input    *string                `json:"input,omitempty"`
	Message  *chat.Message          `json:"message,omitempty"`
	Typers   []chat.TypingIndicator `json:"typers,omitempty"`
	Presence []chat.UserPresence    `json:"presence,omitempty"`
}

// Serve upgrades the request and runs the bridge until either side goes
// away.
func (h *ChatSocketHandler) Serve(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	conversationID := c.Param("id")

	dispatcher, err := h.manager.Acquire(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat unavailable")
	}

	// Only participants may bridge a socket onto a conversation. The
	// dispatcher's resolved set is exactly that membership.
	if !dispatcher.Covers(conversationID) {
		h.manager.Release(userID)
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.manager.Release(userID)
		return err
	}

	sess := &chatSession{
		handler:        h,
		conn:           conn,
		dispatcher:     dispatcher,
		userID:         userID,
		conversationID: conversationID,
		outbound:       make(chan outboundFrame, wsSendBuffer),
		done:           make(chan struct{}),
	}
	sess.run()
	return nil
}

type chatSession struct {
	handler        *ChatSocketHandler
	conn           *websocket.Conn
	dispatcher     *chat.Dispatcher
	userID         string
	conversationID string

	store    *chat.MessageStore
	typing   *chat.TypingTracker
	presence *chat.PresenceTracker

	outbound chan outboundFrame
	done     chan struct{}
}

func (s *chatSession) run() {
	ctx := context.Background()

	name, _ := s.dispatcher.Profile(ctx)
	s.store = chat.NewMessageStore(s.dispatcher, s.conversationID, s.userID, name)
	s.typing = chat.NewTypingTracker(s.dispatcher, s.conversationID)
	s.presence = chat.NewPresenceTracker(s.dispatcher)

	msgToken := s.dispatcher.SubscribeToMessages(s.conversationID, func(m chat.Message) {
		s.store.HandleIncoming(m)
		s.send(outboundFrame{Type: "message", Message: &m})
	})
	typingToken := s.dispatcher.SubscribeToTyping(s.conversationID, func(ts []chat.TypingIndicator) {
		s.send(outboundFrame{Type: "typing", Typers: ts})
	})
	presenceToken := s.dispatcher.SubscribeToPresence(s.conversationID, func(ps []chat.UserPresence) {
		s.send(outboundFrame{Type: "presence", Presence: ps})
	})

	go s.writeLoop()

	s.presence.Start(ctx)
	s.store.LoadInitial(ctx)
	s.sendSnapshot()
	s.send(outboundFrame{Type: "typing", Typers: s.dispatcher.GetTypers(ctx, s.conversationID)})
	s.send(outboundFrame{Type: "presence", Presence: s.dispatcher.GetConversationPresence(ctx, s.conversationID)})

	s.readLoop(ctx)

	// Teardown order matters: listeners first so late events stop
	// flowing, then the trackers publish their stop/offline states.
	s.dispatcher.UnsubscribeFromMessages(s.conversationID, msgToken)
	s.dispatcher.UnsubscribeFromTyping(s.conversationID, typingToken)
	s.dispatcher.UnsubscribeFromPresence(s.conversationID, presenceToken)
	s.store.Close()
	s.typing.Close(ctx)
	s.presence.Close()
	close(s.done)
	s.handler.manager.Release(s.userID)
	s.conn.Close()
}

func (s *chatSession) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.handler.log.Debug("Socket closed unexpectedly", "user_id", s.userID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		s.handleFrame(ctx, frame)
	}
}

func (s *chatSession) handleFrame(ctx context.Context, frame inboundFrame) {
	switch frame.Type {
	case "input":
		s.store.SetInput(frame.Text)
		if frame.Text != "" {
			s.typing.HandleTyping(ctx)
		} else {
			s.typing.StopTyping(ctx)
		}
		s.presence.HandleActivity(ctx)
	case "send":
		s.typing.StopTyping(ctx)
		s.store.Send(ctx)
		s.sendSnapshot()
	case "load_more":
		s.store.LoadMore(ctx)
		s.sendSnapshot()
	case "mark_read":
		s.dispatcher.MarkConversationRead(ctx, s.conversationID)
	case "visibility":
		s.presence.HandleVisibility(ctx, frame.Visible)
	case "activity":
		s.presence.HandleActivity(ctx)
	default:
		s.handler.log.Debug("Unknown frame type", "type", frame.Type)
	}
}

func (s *chatSession) sendSnapshot() {
	msgs := s.store.Messages()
	hasMore := s.store.HasMore()
	input := s.store.Input()
	s.send(outboundFrame{Type: "snapshot", Messages: msgs, HasMore: &hasMore, Input: &input})
}

func (s *chatSession) send(frame outboundFrame) {
	select {
	case s.outbound <- frame:
	case <-s.done:
	default:
		// Slow consumer; drop rather than block the fan-out.
		s.handler.log.Warn("Dropping frame for slow socket", "user_id", s.userID, "type", frame.Type)
	}
}

func (s *chatSession) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.outbound:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
