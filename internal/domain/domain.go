// Package domain holds the shared types and sentinel errors that cross
// package boundaries.
package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. It is a
	// valid outcome, distinct from a transport failure.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the request carries no resolved user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates the caller supplied data that failed
	// validation.
	ErrInvalidInput = errors.New("invalid input")
)
