package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/middleware"
	"github.com/itsjmendez/adonde/internal/notify"
)

// NotificationsHandler serves the caller's notification feed.
type NotificationsHandler struct {
	center *notify.Center
}

// NewNotificationsHandler creates the notifications handler.
func NewNotificationsHandler(center *notify.Center) *NotificationsHandler {
	return &NotificationsHandler{center: center}
}

// List returns the caller's notifications.
func (h *NotificationsHandler) List(c echo.Context) error {
	items := h.center.ListForUser(middleware.CurrentUserID(c))
	return c.JSON(http.StatusOK, map[string]any{"notifications": items})
}

// Clear empties the caller's feed.
func (h *NotificationsHandler) Clear(c echo.Context) error {
	h.center.Clear(middleware.CurrentUserID(c))
	return c.NoContent(http.StatusNoContent)
}
