// Package errors provides structured error types for annotab.
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
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryIndex      ErrorCategory = "INDEX"
	ErrCategoryTable      ErrorCategory = "TABLE"
	ErrCategoryDatabase   ErrorCategory = "DATABASE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidRecord = "INVALID_RECORD"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Index codes
	CodeInvalidLevelName = "INVALID_LEVEL_NAME"
	CodeInvalidSegment   = "INVALID_SEGMENT"

	// Table codes
	CodeShapeMismatch       = "SHAPE_MISMATCH"
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeLengthMismatch      = "LENGTH_MISMATCH"
	CodeValueConflict       = "VALUE_CONFLICT"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeNameCollision       = "NAME_COLLISION"

	// Database codes
	CodeReferential   = "REFERENTIAL"
	CodeTableNotFound = "TABLE_NOT_FOUND"

	// Storage codes
	CodeEncodeFailed   = "ENCODE_FAILED"
	CodeDecodeFailed   = "DECODE_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is matching. Any error with the same category and code
// matches, regardless of message or cause.
var (
	ErrInvalidLevelName    = New(ErrCategoryIndex, CodeInvalidLevelName, "invalid level name")
	ErrInvalidSegment      = New(ErrCategoryIndex, CodeInvalidSegment, "invalid segment")
	ErrShapeMismatch       = New(ErrCategoryTable, CodeShapeMismatch, "shape mismatch")
	ErrTypeMismatch        = New(ErrCategoryTable, CodeTypeMismatch, "type mismatch")
	ErrLengthMismatch      = New(ErrCategoryTable, CodeLengthMismatch, "length mismatch")
	ErrValueConflict       = New(ErrCategoryTable, CodeValueConflict, "value conflict")
	ErrConstraintViolation = New(ErrCategoryTable, CodeConstraintViolation, "constraint violation")
	ErrNameCollision       = New(ErrCategoryTable, CodeNameCollision, "name collision")
	ErrReferential         = New(ErrCategoryDatabase, CodeReferential, "referential integrity")
	ErrTableNotFound       = New(ErrCategoryDatabase, CodeTableNotFound, "table not found")
	ErrInvalidRecord       = New(ErrCategoryValidation, CodeInvalidRecord, "invalid record")
	ErrEncodeFailed        = New(ErrCategoryStorage, CodeEncodeFailed, "encode failed")
	ErrDecodeFailed        = New(ErrCategoryStorage, CodeDecodeFailed, "decode failed")
	ErrObjectNotFound      = New(ErrCategoryStorage, CodeObjectNotFound, "object not found")
)

// AnnotabError is the structured error type used throughout the system.
type AnnotabError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *AnnotabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *AnnotabError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *AnnotabError) Is(target error) bool {
	var t *AnnotabError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new AnnotabError.
func New(category ErrorCategory, code, message string) *AnnotabError {
	return &AnnotabError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new AnnotabError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *AnnotabError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new AnnotabError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *AnnotabError {
	return &AnnotabError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *AnnotabError) WithDetails(details map[string]interface{}) *AnnotabError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ae *AnnotabError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an AnnotabError.
func GetCategory(err error) ErrorCategory {
	var ae *AnnotabError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an AnnotabError.
func GetCode(err error) string {
	var ae *AnnotabError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only object storage
// transfers are; every structural error is deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewLevelNameError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryIndex, CodeInvalidLevelName, format, args...)
}

func NewShapeError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryTable, CodeShapeMismatch, format, args...)
}

func NewTypeError(message string, cause error) *AnnotabError {
	return Wrap(ErrCategoryTable, CodeTypeMismatch, message, cause)
}

func NewLengthError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryTable, CodeLengthMismatch, format, args...)
}

func NewConflictError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryTable, CodeValueConflict, format, args...)
}

func NewConstraintError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryTable, CodeConstraintViolation, format, args...)
}

func NewReferentialError(format string, args ...interface{}) *AnnotabError {
	return Newf(ErrCategoryDatabase, CodeReferential, format, args...)
}

func NewStorageError(code, message string, cause error) *AnnotabError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *AnnotabError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
