package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when there is no session user. All remote
	// calls fail closed with this error.
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	// ErrConflict is returned by storage when a uniqueness constraint is
	// violated, e.g. a second workflow for the same quote.
	ErrConflict        = errors.New("conflict")
	ErrTransport       = errors.New("transport failure")
	ErrWorkflowMissing = errors.New("workflow missing")
)

// ValidationError describes input rejected before it reaches storage.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError wraps a network level failure, or an unexpected response
// from the remote store.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
