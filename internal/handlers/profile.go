package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/middleware"
	"github.com/itsjmendez/adonde/internal/profile"
)

// ProfileHandler exposes profile CRUD and roommate search.
type ProfileHandler struct {
	profiles *profile.Service
}

// NewProfileHandler creates the profile handler.
func NewProfileHandler(profiles *profile.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetOwn returns the caller's profile.
func (h *ProfileHandler) GetOwn(c echo.Context) error {
	p, err := h.profiles.Get(c.Request().Context(), middleware.CurrentUserID(c))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Get returns another user's profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	p, err := h.profiles.Get(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Update merges changes into the caller's profile.
func (h *ProfileHandler) Update(c echo.Context) error {
	var in profile.UpdateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}

	updated, err := h.profiles.Update(c.Request().Context(), middleware.CurrentUserID(c), &in)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// CheckComplete reports onboarding state, creating the stub row on first
// visit.
func (h *ProfileHandler) CheckComplete(c echo.Context) error {
	complete, err := h.profiles.CheckComplete(c.Request().Context(), middleware.CurrentUserID(c), "")
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_complete": complete})
}

// Search finds roommates near the caller's coordinates. Query params:
// lat, lng (required), radius_miles, limit.
func (h *ProfileHandler) Search(c echo.Context) error {
	lat, latErr := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if latErr != nil || lngErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "lat and lng are required"})
	}

	params := profile.SearchParams{Latitude: lat, Longitude: lng}
	if raw := c.QueryParam("radius_miles"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil {
			params.RadiusMiles = r
		}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			params.Limit = n
		}
	}

	results, err := h.profiles.SearchRoommates(c.Request().Context(), middleware.CurrentUserID(c), params)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}
