package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// UnsupportedModelError is returned when a forecast request names an unknown
// model type.
type UnsupportedModelError struct {
	ModelType string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported forecast model: %s", e.ModelType)
}

// NewUnsupportedModelError creates an UnsupportedModelError for the given model tag.
func NewUnsupportedModelError(modelType string) error {
	return &UnsupportedModelError{ModelType: modelType}
}

// UnsupportedMethodError is returned when an anomaly detection request names
// an unknown detection method.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported detection method: %s", e.Method)
}

// NewUnsupportedMethodError creates an UnsupportedMethodError for the given method tag.
func NewUnsupportedMethodError(method string) error {
	return &UnsupportedMethodError{Method: method}
}

// InsufficientDataError is returned when a series is too short for the chosen
// strategy or window.
type InsufficientDataError struct {
	Message string
}

func (e *InsufficientDataError) Error() string {
	return e.Message
}

// NewInsufficientDataErrorf creates an InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(format string, args ...interface{}) error {
	return &InsufficientDataError{Message: fmt.Sprintf(format, args...)}
}

// EncodingError is returned when cache key or payload serialization fails.
// It is internal: callers at the cache boundary fall back to uncached execution.
type EncodingError struct {
	Cause error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed: %v", e.Cause)
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// NewEncodingError wraps a serialization failure.
func NewEncodingError(cause error) error {
	return &EncodingError{Cause: cause}
}

// CacheUnavailableError is returned when the cache backend is unreachable.
// Callers must treat it as a cache miss, never as a request failure.
type CacheUnavailableError struct {
	Cause error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable: %v", e.Cause)
}

func (e *CacheUnavailableError) Unwrap() error {
	return e.Cause
}

// NewCacheUnavailableError wraps a cache backend failure.
func NewCacheUnavailableError(cause error) error {
	return &CacheUnavailableError{Cause: cause}
}

// IsClientError reports whether err should map to a 4xx response rather than
// a 5xx. Strategy-selection, data-sufficiency, and validation failures are the
// caller's fault; everything else is treated as a server error.
func IsClientError(err error) bool {
	var validationErr *ValidationError
	var modelErr *UnsupportedModelError
	var methodErr *UnsupportedMethodError
	var dataErr *InsufficientDataError
	return errors.As(err, &validationErr) ||
		errors.As(err, &modelErr) ||
		errors.As(err, &methodErr) ||
		errors.As(err, &dataErr)
}
