package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsjmendez/adonde/internal/domain"
)

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiError maps domain sentinel errors onto HTTP responses.
func apiError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "resource not found"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, ErrorResponse{Code: "forbidden", Message: "not allowed"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "internal error"})
	}
}
