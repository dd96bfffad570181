package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies application errors into stable machine-readable
// codes surfaced to clients as errorCode.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "INVALID_REQUEST"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT_EXCEEDED"
	ErrorTypeBlacklisted ErrorType = "IP_BLACKLISTED"
	ErrorTypeUnavailable ErrorType = "STORE_UNAVAILABLE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"errorCode"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidationError creates a 400 error for malformed client input
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewRateLimitError creates a 429 error
func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewBlacklistedError creates a 403 error for denied client identities
func NewBlacklistedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBlacklisted,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewUnavailableError creates a 503 error for an unreachable backing store
func NewUnavailableError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Internal:   internal,
	}
}

// NewInternalError creates a 500 error wrapping an unexpected failure
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}
