package handlers

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps go-playground/validator to implement echo's
// Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// SendMessageRequest is the body of a message send.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// UpdatePresenceRequest sets the caller's presence status.
type UpdatePresenceRequest struct {
	Status string `json:"status" validate:"required,oneof=online away offline"`
}

// SendConnectionRequest opens a connection request to another user.
type SendConnectionRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Message    string `json:"message" validate:"max=500"`
}

// RespondConnectionRequest resolves a pending connection request.
type RespondConnectionRequest struct {
	Accept bool `json:"accept"`
}

// GeocodeRequest resolves free-form location text.
type GeocodeRequest struct {
	Location string `json:"location" validate:"required,max=200"`
}

// SearchLocationRequest updates the caller's search origin.
type SearchLocationRequest struct {
	Location    string `json:"location" validate:"required,max=200"`
	RadiusMiles int    `json:"radius_miles" validate:"omitempty,gte=1,lte=500"`
}
