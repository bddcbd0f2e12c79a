package shared

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated indicates the request carries no valid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the authenticated user lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the referenced entity does not exist upstream.
	ErrNotFound = errors.New("not found")
	// ErrUpstream indicates an unexpected upstream failure.
	ErrUpstream = errors.New("upstream request failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldErrors maps field names to human readable messages.
type FieldErrors map[string]string

// ValidationError carries per-field validation failures.
type ValidationError struct {
	Fields FieldErrors
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field messages.
func NewValidationError(fields FieldErrors) *ValidationError {
	return &ValidationError{Fields: fields}
}
