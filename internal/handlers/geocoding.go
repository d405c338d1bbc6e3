package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/geocoding"
	"github.com/itsjmendez/adonde/internal/middleware"
	"github.com/itsjmendez/adonde/internal/profile"
)

// GeocodingHandler resolves locations and updates search origins.
type GeocodingHandler struct {
	geocoder *geocoding.Service
	profiles *profile.Service
}

// NewGeocodingHandler creates the geocoding handler.
func NewGeocodingHandler(geocoder *geocoding.Service, profiles *profile.Service) *GeocodingHandler {
	return &GeocodingHandler{geocoder: geocoder, profiles: profiles}
}

// Geocode resolves free-form location text to coordinates.
func (h *GeocodingHandler) Geocode(c echo.Context) error {
	var req GeocodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}

	result := h.geocoder.Geocode(c.Request().Context(), req.Location)
	if result == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "location not found"})
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateSearchLocation geocodes and stores the caller's search origin,
// then invalidates their cached roommate search.
func (h *GeocodingHandler) UpdateSearchLocation(c echo.Context) error {
	var req SearchLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "malformed body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	}

	userID := middleware.CurrentUserID(c)
	result, err := h.geocoder.UpdateSearchLocation(c.Request().Context(), userID, req.Location, req.RadiusMiles)
	if err != nil {
		return apiError(c, err)
	}

	// The search origin moved; stale cached results would mislead.
	h.profiles.InvalidateSearch(userID)
	return c.JSON(http.StatusOK, result)
}
