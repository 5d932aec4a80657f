// Package errors defines the typed error vocabulary of the provenance core.
//
// Every failure that crosses a package boundary is classified with an
// ErrorCode so that callers (HTTP handlers, the reconciler loop, retry
// helpers) can branch on the kind of failure without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a failure.
type ErrorCode string

const (
	// ErrCodeValidation indicates a rejected input (e.g. rejection notes too short).
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeIdentifierTooLong indicates a batch identifier exceeding the
	// fixed on-ledger width.
	ErrCodeIdentifierTooLong ErrorCode = "IDENTIFIER_TOO_LONG"

	// ErrCodeChainUnavailable indicates the ledger RPC or event stream is
	// unreachable. Retryable.
	ErrCodeChainUnavailable ErrorCode = "CHAIN_UNAVAILABLE"

	// ErrCodeChainRejected indicates a mined transaction reverted. Not retryable.
	ErrCodeChainRejected ErrorCode = "CHAIN_REJECTED"

	// ErrCodeWriteTimeout indicates the finality wait for a submitted
	// transaction exceeded the configured deadline.
	ErrCodeWriteTimeout ErrorCode = "WRITE_TIMEOUT"

	// ErrCodeContentStore indicates the content-addressed store failed a put.
	ErrCodeContentStore ErrorCode = "CONTENT_STORE"

	// ErrCodeStateConflict indicates an illegal batch status transition.
	ErrCodeStateConflict ErrorCode = "STATE_CONFLICT"

	// ErrCodeNotFound indicates a referenced entity does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDatabase indicates a relational store failure.
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeInternal indicates an unclassified internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// CoreError is the error type carried across package boundaries.
type CoreError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a CoreError without a cause.
func New(code ErrorCode, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// Newf creates a CoreError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *CoreError {
	return &CoreError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a CoreError wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the ErrorCode from err, walking the wrap chain.
// Returns ErrCodeInternal for unclassified errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is worth retrying with backoff.
// Only transport-level ledger failures qualify; reverts, validation
// failures and state conflicts are final.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeChainUnavailable, ErrCodeWriteTimeout:
		return true
	default:
		return false
	}
}
