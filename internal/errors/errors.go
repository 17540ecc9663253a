// Package errors provides structured error types for the Cartflow pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation   ErrorCategory = "VALIDATION"
	ErrCategoryIngest       ErrorCategory = "INGEST"
	ErrCategorySession      ErrorCategory = "SESSION"
	ErrCategoryStorage      ErrorCategory = "STORAGE"
	ErrCategoryCoordination ErrorCategory = "COORDINATION"
	ErrCategoryInternal     ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes (per-record: the record is dropped, the run continues)
	CodeMissingField   = "MISSING_FIELD"
	CodeBadTimestamp   = "BAD_TIMESTAMP"
	CodeInvalidNumeric = "INVALID_NUMERIC"

	// Ingest codes (fatal to the shard)
	CodeMalformedInput = "MALFORMED_INPUT"

	// Storage codes
	CodeFlushFailed    = "FLUSH_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// Coordination codes
	CodeQueueUnavailable = "QUEUE_UNAVAILABLE"
	CodeShardFailed      = "SHARD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// CartflowError is the structured error type used throughout the system.
type CartflowError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *CartflowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CartflowError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *CartflowError) Is(target error) bool {
	var t *CartflowError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new CartflowError.
func New(category ErrorCategory, code, message string) *CartflowError {
	return &CartflowError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new CartflowError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *CartflowError {
	return &CartflowError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *CartflowError) WithDetails(details map[string]interface{}) *CartflowError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *CartflowError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a CartflowError.
func GetCategory(err error) ErrorCategory {
	var ce *CartflowError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a CartflowError.
func GetCode(err error) string {
	var ce *CartflowError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Retryable means
// the shard attempt as a whole may be rerun; per-record validation errors
// are never retryable because the record itself is bad.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeFlushFailed:
		return true
	case category == ErrCategoryCoordination && code == CodeShardFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *CartflowError {
	return New(ErrCategoryValidation, code, message)
}

func NewIngestError(message string, cause error) *CartflowError {
	return Wrap(ErrCategoryIngest, CodeMalformedInput, message, cause)
}

func NewStorageError(code, message string, cause error) *CartflowError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCoordinationError(code, message string, cause error) *CartflowError {
	return Wrap(ErrCategoryCoordination, code, message, cause)
}

func NewInternalError(message string, cause error) *CartflowError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
