// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - HTTPStatus mapping for the transport layer
// - Error wrapping utilities

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Pipeline errors
	ErrDecode         = errors.New("decode error")
	ErrInvalidReading = errors.New("invalid reading")
	ErrStorage        = errors.New("storage error")
	ErrRetrieval      = errors.New("retrieval error")
	ErrFetch          = errors.New("fetch error")

	// Auth errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")

	// Request validation errors
	ErrInvalidBound  = errors.New("invalid time bound")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Lifecycle errors
	ErrNotRunning     = errors.New("service not running")
	ErrAlreadyRunning = errors.New("service already running")
	ErrClosed         = errors.New("closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsAuthError returns true if err is an authentication/authorization error.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrNotAuthorized)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidBound) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidReading)
}

// IsPipelineError returns true if err originated in ingestion or query.
func IsPipelineError(err error) bool {
	return errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrRetrieval) ||
		errors.Is(err, ErrFetch)
}

// ============================================================================
// Error to HTTP status mapping
// ============================================================================

// HTTPStatus maps a sentinel error to the status code returned to callers.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case Is(err, ErrInvalidBound):
		return http.StatusBadRequest
	case Is(err, ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewStorage wraps a backend failure so it matches ErrStorage.
func NewStorage(backend, op string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", backend, op, ErrStorage, err)
}

// NewRetrieval wraps a query failure so it matches both ErrRetrieval and
// the underlying cause.
func NewRetrieval(what string, err error) error {
	return fmt.Errorf("retrieve %s: %w: %w", what, ErrRetrieval, err)
}

// NewDecode creates a decode error with context.
func NewDecode(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDecode)
}

// NewInvalidReading creates an invalid reading error with context.
func NewInvalidReading(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidReading)
}

// NewInvalidBound creates an invalid bound error for a query parameter.
func NewInvalidBound(param, value string) error {
	return fmt.Errorf("%s %q: %w", param, value, ErrInvalidBound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
