package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
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

// Is matches any DomainError with the same code and message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeDiffApplication  = "DIFF_APPLICATION_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidTargetRange   = NewDomainError(ErrCodeValidation, "invalid target range")
	ErrEmptyTarget          = NewDomainError(ErrCodeValidation, "target text is empty or whitespace")
)

// Not found errors
var (
	ErrManuscriptNotFound  = NewDomainError(ErrCodeNotFound, "manuscript not found")
	ErrVersionNotFound     = NewDomainError(ErrCodeNotFound, "version not found")
	ErrEditSessionNotFound = NewDomainError(ErrCodeNotFound, "edit session not found")
	ErrEditOptionNotFound  = NewDomainError(ErrCodeNotFound, "edit option not found")
	ErrIndexJobNotFound    = NewDomainError(ErrCodeNotFound, "index job not found")
)

// Conflict errors
var (
	ErrSessionAlreadyApplied = NewDomainError(ErrCodeConflict, "edit session has already been applied")
	ErrStaleSession          = NewDomainError(ErrCodeConflict, "edit session was created against a version that is no longer current")
	ErrCurrentVersionMoved   = NewDomainError(ErrCodeConflict, "current version changed concurrently")
)

// Authorization errors
var (
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Provider errors
var (
	ErrNoUsableOptions = NewDomainError(ErrCodeProvider, "generator returned no usable options")
)

// Storage errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrStorageNotConfigured = NewDomainError(ErrCodeInvalidOperation, "snapshot storage is not configured")
)

// NewValidationError builds a VALIDATION_ERROR with a formatted message.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NewDiffApplicationError builds a DIFF_APPLICATION_ERROR with a formatted message.
func NewDiffApplicationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeDiffApplication, fmt.Sprintf(format, args...))
}

// ProviderError wraps a failure from an external embedding, retrieval or
// generation backend. Retryable marks transient failures (rate limits,
// timeouts, 5xx).
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", ErrCodeProvider, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a ProviderError.
func NewProviderError(provider string, retryable bool, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsProviderError reports whether err originates from an external provider.
func IsProviderError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return true
	}
	return IsCode(err, ErrCodeProvider)
}
