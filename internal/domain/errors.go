package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ExternalAPIError describes a failure response from an upstream API
// (PubMed, Gemini, Polly, SMTP relay).
type ExternalAPIError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap returns the wrapped error, or ErrServiceUnavailable for 5xx responses.
func (e *ExternalAPIError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.StatusCode >= 500 {
		return ErrServiceUnavailable
	}
	return nil
}

// NewExternalAPIError creates a new external API error.
func NewExternalAPIError(service string, statusCode int, body string, err error) *ExternalAPIError {
	return &ExternalAPIError{Service: service, StatusCode: statusCode, Body: body, Err: err}
}
