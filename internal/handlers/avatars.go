package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/middleware"
	"github.com/itsjmendez/adonde/internal/profile"
	"github.com/itsjmendez/adonde/internal/storage"
)

// AvatarHandler manages avatar uploads.
type AvatarHandler struct {
	avatars  *storage.AvatarStore
	profiles *profile.Service
}

// NewAvatarHandler creates the avatar handler.
func NewAvatarHandler(avatars *storage.AvatarStore, profiles *profile.Service) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, profiles: profiles}
}

// Upload stores a multipart avatar and points the caller's profile at
// it.
func (h *AvatarHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "avatar file required"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "unreadable upload"})
	}
	defer src.Close()

	userID := middleware.CurrentUserID(c)
	url, err := h.avatars.Save(c.Request().Context(), userID, fh.Filename, src)
	if err != nil {
		return apiError(c, err)
	}

	// Point the profile at the new avatar; the upload stands even if
	// this fails.
	if _, err := h.profiles.Update(c.Request().Context(), userID, &profile.UpdateInput{AvatarURL: &url}); err != nil {
		return c.JSON(http.StatusCreated, map[string]string{"url": url, "warning": "profile not updated"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}

// List returns the caller's uploaded avatars.
func (h *AvatarHandler) List(c echo.Context) error {
	urls, err := h.avatars.List(c.Request().Context(), middleware.CurrentUserID(c))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"avatars": urls})
}

// Delete removes one of the caller's avatars by URL.
func (h *AvatarHandler) Delete(c echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: "url required"})
	}
	if err := h.avatars.Delete(c.Request().Context(), middleware.CurrentUserID(c), url); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
