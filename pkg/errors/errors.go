package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeForbidden indicates the resource belongs to someone else
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeRateLimited indicates a rate limit ceiling was reached
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"

	// ErrorTypeInsufficientCredits indicates the user has no credits left
	ErrorTypeInsufficientCredits ErrorType = "INSUFFICIENT_CREDITS"

	// ErrorTypeAIProvider indicates the AI call failed or returned an unusable payload
	ErrorTypeAIProvider ErrorType = "AI_PROVIDER"

	// ErrorTypePersistence indicates a generated result could not be saved
	ErrorTypePersistence ErrorType = "PERSISTENCE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// RetryAfter is set on rate limit errors
	RetryAfter time.Duration
	// Remaining is the quota left when a rate limit error was raised
	Remaining int
	// ResetAt is when the exceeded window resets
	ResetAt time.Time
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// NewRateLimitedError creates a new rate limit error
func NewRateLimitedError(message string, retryAfter time.Duration, remaining int, resetAt time.Time) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
		Remaining:  remaining,
		ResetAt:    resetAt,
	}
}

// NewInsufficientCreditsError creates a new insufficient credits error
func NewInsufficientCreditsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInsufficientCredits,
		Message: message,
	}
}

// NewAIProviderError creates a new AI provider error
func NewAIProviderError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeAIProvider,
		Message: message,
		Err:     err,
	}
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePersistence,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
