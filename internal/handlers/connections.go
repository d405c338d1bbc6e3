package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/connections"
	"github.com/itsjmendez/adonde/internal/middleware"
)

// ConnectionsHandler exposes the connection request flows.
type ConnectionsHandler struct {
	connections *connections.Service
}

// NewConnectionsHandler creates the connections handler.
func NewConnectionsHandler(svc *connections.Service) *ConnectionsHandler {
	return &ConnectionsHandler{connections: svc}
}

// List returns the caller's requests. Query param type: received
// (default), sent, or active.
func (h *ConnectionsHandler) List(c echo.Context) error {
	kind := connections.ListKind(c.QueryParam("type"))
	if kind == "" {
		kind = connections.ListReceived
	}

	reqs, err := h.connections.List(c.Request().Context(), middleware.CurrentUserID(c), kind)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"requests": reqs})
}

// Send opens a connection request.
func (h *ConnectionsHandler) Send(c echo.Context) error {
	var req SendConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}

	id, err := h.connections.Send(c.Request().Context(), middleware.CurrentUserID(c), req.ReceiverID, req.Message)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// Respond accepts or declines a pending request.
func (h *ConnectionsHandler) Respond(c echo.Context) error {
	var req RespondConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}

	err := h.connections.Respond(c.Request().Context(), middleware.CurrentUserID(c), c.Param("id"), req.Accept)
	if err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StatusWith returns the caller's relationship with another user.
func (h *ConnectionsHandler) StatusWith(c echo.Context) error {
	info, err := h.connections.StatusWith(c.Request().Context(), middleware.CurrentUserID(c), c.Param("userID"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// SenderProfile loads the profile behind a pending request.
func (h *ConnectionsHandler) SenderProfile(c echo.Context) error {
	p, err := h.connections.RequestSenderProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
