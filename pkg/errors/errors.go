// Package errors provides structured error types for the crateintel service.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Every user-visible failure carries one of a small set of codes. The
// HTTP layer maps codes to status codes; everything not in this taxonomy
// is recovered internally and never surfaces to a caller.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid crate name: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidCrate Code = "INVALID_CRATE"
	ErrCodeInvalidDepth Code = "INVALID_DEPTH"

	// Resource not found errors
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeCrateNotFound Code = "CRATE_NOT_FOUND"

	// Authentication and entitlement errors
	ErrCodeUnauthorized  Code = "UNAUTHORIZED"
	ErrCodeKeyExpired    Code = "KEY_EXPIRED"
	ErrCodeTierForbidden Code = "TIER_FORBIDDEN"

	// Rate and quota errors
	ErrCodeRateLimited   Code = "RATE_LIMITED"
	ErrCodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As is a passthrough to the standard library, so callers need only one
// errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c interface{ Code() Code }
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitError carries the window state for a per-minute rejection.
// Reset is the start of the next minute bucket.
type RateLimitError struct {
	Limit int       // Requests allowed per minute
	Used  int       // Requests consumed in the current bucket
	Reset time.Time // When the current bucket rolls over
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per minute exceeded, resets at %s",
		e.Limit, e.Reset.UTC().Format(time.RFC3339))
}

// Code returns the error code for this error type.
func (e *RateLimitError) Code() Code {
	return ErrCodeRateLimited
}

// TierError reports a request above the caller's entitlement, naming
// the minimum tier that would be allowed to make it.
type TierError struct {
	Required string // Minimum tier that satisfies the request
	Message  string
}

// Error implements the error interface.
func (e *TierError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (requires %s tier)", e.Message, e.Required)
	}
	return fmt.Sprintf("requires %s tier", e.Required)
}

// Code returns the error code for this error type.
func (e *TierError) Code() Code {
	return ErrCodeTierForbidden
}
