package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for neko-ai errors.
type ErrorCode string

// Configuration error codes. Configuration failures are fatal at startup
// and never recoverable at request time.
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED  ErrorCode = "DB_OPEN_FAILED"
	DB_QUERY_FAILED ErrorCode = "DB_QUERY_FAILED"
)

// Conversation error codes
const (
	CONVERSATION_NOT_FOUND ErrorCode = "CONVERSATION_NOT_FOUND"
	CONVERSATION_INVALID   ErrorCode = "CONVERSATION_INVALID"
)

// NekoError represents a structured error with error code, message, and
// optional cause. The Retryable flag marks transient store errors that may
// succeed on retry with backoff; data errors and not-found lookups are never
// retryable.
type NekoError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *NekoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *NekoError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *NekoError) Is(target error) bool {
	var nekoErr *NekoError
	if errors.As(target, &nekoErr) {
		return e.Code == nekoErr.Code
	}
	return false
}

// NewError creates a new non-retryable NekoError with the given code and message.
func NewError(code ErrorCode, message string) *NekoError {
	return &NekoError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable NekoError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., timeouts,
// connection resets).
func NewRetryableError(code ErrorCode, message string) *NekoError {
	return &NekoError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable NekoError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *NekoError {
	return &NekoError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a retryable NekoError that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *NekoError {
	return &NekoError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// HasCode reports whether err (or any error in its chain) is a NekoError
// with the given code.
func HasCode(err error, code ErrorCode) bool {
	var nekoErr *NekoError
	if errors.As(err, &nekoErr) {
		return nekoErr.Code == code
	}
	return false
}

// IsRetryable reports whether err (or any error in its chain) is a NekoError
// marked retryable.
func IsRetryable(err error) bool {
	var nekoErr *NekoError
	if errors.As(err, &nekoErr) {
		return nekoErr.Retryable
	}
	return false
}
