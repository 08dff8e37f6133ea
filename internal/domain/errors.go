package domain

import (
	"errors"
	"fmt"
)

// Error codes for categorization
const (
	// Client errors (4xx)
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

	// Server errors (5xx)
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeDatabase    = "DATABASE_ERROR"
	ErrCodeExternalAPI = "EXTERNAL_API_ERROR"
)

// DomainError is a structured error for domain operations
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for error comparison
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel domain errors (used with errors.Is)
var (
	ErrNotFound     = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrInvalidInput = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
	ErrConflict     = &DomainError{Code: ErrCodeConflict, Message: "conflict"}
	ErrExternalAPI  = &DomainError{Code: ErrCodeExternalAPI, Message: "external API error"}
)

// NotFoundError creates a not found domain error
func NotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
		Err:     ErrNotFound,
	}
}

// ValidationError creates a validation domain error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
		Err:     ErrInvalidInput,
	}
}

// ConflictError creates a conflict domain error
func ConflictError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: message,
		Err:     ErrConflict,
	}
}

// ExternalAPIError creates an upstream-dependency domain error. The
// upstream's own error text is embedded in the message so callers see
// what the provider said.
func ExternalAPIError(service string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeExternalAPI,
		Message: fmt.Sprintf("%s: %v", service, err),
		Details: map[string]any{"service": service},
		Err:     ErrExternalAPI,
	}
}

// DatabaseError creates a persistence domain error
func DatabaseError(op string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeDatabase,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}

// IsNotFoundError checks whether err is a not found domain error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeNotFound
	}
	return false
}

// IsConflictError checks whether err is a conflict domain error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeConflict
	}
	return false
}

// IsValidationError checks whether err is a validation domain error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrCodeValidation
	}
	return false
}
