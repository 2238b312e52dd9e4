package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Request/run lookup errors
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeRunNotFound    ErrorCode = "RUN_NOT_FOUND"
	ErrCodeRunNotTerminal ErrorCode = "RUN_NOT_TERMINAL"

	// Adapter errors
	ErrCodeProviderTransient    ErrorCode = "PROVIDER_TRANSIENT"
	ErrCodeProviderFatal        ErrorCode = "PROVIDER_FATAL"
	ErrCodeValidatorUnavailable ErrorCode = "VALIDATOR_UNAVAILABLE"
	ErrCodeValidationRejected   ErrorCode = "VALIDATION_REJECTED"

	// Terminal set/run failure reasons
	ErrCodeRetryExhausted ErrorCode = "RETRY_BUDGET_EXHAUSTED"
	ErrCodeFatalAbort     ErrorCode = "FATAL_ABORT"
	ErrCodeCancelled      ErrorCode = "CANCELLED"
	ErrCodeTimedOut       ErrorCode = "TIMED_OUT"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the domain error code from err, or ErrCodeInternal for
// errors outside the taxonomy.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code ErrorCode) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func NewInvalidRequestError(message string) *DomainError {
	return NewError(ErrCodeInvalidRequest, message, nil)
}

func NewRunNotFoundError(runID string) *DomainError {
	return NewError(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", runID), nil)
}

func NewRunNotTerminalError(runID string) *DomainError {
	return NewError(ErrCodeRunNotTerminal, fmt.Sprintf("run is still in progress: %s", runID), nil)
}

// NewProviderTransientError wraps rate limits, timeouts and other
// retryable provider failures.
func NewProviderTransientError(message string, cause error) *DomainError {
	return NewError(ErrCodeProviderTransient, message, cause)
}

// NewProviderFatalError wraps auth/config failures. A fatal provider
// error aborts the whole run.
func NewProviderFatalError(message string, cause error) *DomainError {
	return NewError(ErrCodeProviderFatal, message, cause)
}

func NewValidatorUnavailableError(cause error) *DomainError {
	return NewError(ErrCodeValidatorUnavailable, "validator is unavailable", cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(ErrCodeInternal, message, cause)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(ErrCodeUnauthorized, message, nil)
}
