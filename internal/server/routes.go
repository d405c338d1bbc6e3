package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/middleware"
)

// RegisterRoutes sets up all application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/health", func(c echo.Context) error {
		if !s.db.IsHealthy() {
			return c.String(http.StatusServiceUnavailable, "degraded")
		}
		return c.String(http.StatusOK, "OK")
	})

	rateLimiter := middleware.RateLimiter()

	api := s.E.Group("/api", middleware.RequireUser())

	// Conversations and messages.
	api.GET("/conversations", s.chatHandler.ListConversations)
	api.GET("/conversations/by-connection/:connectionID", s.chatHandler.ConversationByConnection)
	api.GET("/conversations/:id/messages", s.chatHandler.GetMessages)
	api.POST("/conversations/:id/messages", s.chatHandler.SendMessage, rateLimiter)
	api.POST("/conversations/:id/read", s.chatHandler.MarkRead)
	api.GET("/conversations/:id/unread", s.chatHandler.Unread)

	// Typing and presence.
	api.POST("/conversations/:id/typing/start", s.chatHandler.StartTyping)
	api.POST("/conversations/:id/typing/stop", s.chatHandler.StopTyping)
	api.GET("/conversations/:id/typing", s.chatHandler.GetTypers)
	api.GET("/conversations/:id/presence", s.chatHandler.ConversationPresence)
	api.POST("/presence", s.chatHandler.UpdatePresence)

	// Live bridge.
	api.GET("/conversations/:id/ws", s.chatSocketHandler.Serve)

	// Profiles and search.
	api.GET("/profile", s.profileHandler.GetOwn)
	api.PATCH("/profile", s.profileHandler.Update)
	api.GET("/profile/complete", s.profileHandler.CheckComplete)
	api.GET("/profiles/:userID", s.profileHandler.Get)
	api.GET("/roommates/search", s.profileHandler.Search)

	// Connection requests.
	api.GET("/connections", s.connectionsHandler.List)
	api.POST("/connections", s.connectionsHandler.Send, rateLimiter)
	api.POST("/connections/:id/respond", s.connectionsHandler.Respond)
	api.GET("/connections/status/:userID", s.connectionsHandler.StatusWith)
	api.GET("/connections/:id/sender", s.connectionsHandler.SenderProfile)

	// Location.
	api.POST("/geocode", s.geocodingHandler.Geocode, rateLimiter)
	api.POST("/profile/search-location", s.geocodingHandler.UpdateSearchLocation, rateLimiter)

	// Notifications.
	api.GET("/notifications", s.notifsHandler.List)
	api.DELETE("/notifications", s.notifsHandler.Clear)

	// Avatars.
	api.POST("/avatars", s.avatarHandler.Upload)
	api.GET("/avatars", s.avatarHandler.List)
	api.DELETE("/avatars", s.avatarHandler.Delete)
}
