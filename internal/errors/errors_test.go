package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAnnotabError_Error(t *testing.T) {
	err := New(ErrCategoryTable, CodeShapeMismatch, "cannot pick")
	expected := "[TABLE:SHAPE_MISMATCH] cannot pick"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestAnnotabError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestAnnotabError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewTypeError("column 'c'", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestAnnotabError_Is(t *testing.T) {
	err1 := NewShapeError("cannot pick index of table %q", "files")
	err2 := NewShapeError("cannot drop index")
	err3 := NewConflictError("different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if !errors.Is(err1, ErrShapeMismatch) {
		t.Error("error should match its sentinel")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("merge: %w", NewConflictError("row 1"))
	if !errors.Is(wrapped, ErrValueConflict) {
		t.Error("wrapped error should match its sentinel")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryStorage, CodeDecodeFailed, false},
		{ErrCategoryTable, CodeValueConflict, false},
		{ErrCategoryTable, CodeShapeMismatch, false},
		{ErrCategoryDatabase, CodeReferential, false},
		{ErrCategoryIndex, CodeInvalidLevelName, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := NewReferentialError("scheme %q does not exist", "emotion")
	if GetCategory(err) != ErrCategoryDatabase {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryDatabase)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-AnnotabError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := NewLevelNameError("level names must be unique")
	if GetCode(err) != CodeInvalidLevelName {
		t.Errorf("got %q, want %q", GetCode(err), CodeInvalidLevelName)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-AnnotabError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewConflictError("values differ")
	detailed := err.WithDetails(map[string]interface{}{"column": "emotion"})

	if detailed.Details["column"] != "emotion" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	l := NewLengthError("expected %d values, got %d", 3, 2)
	if l.Category != ErrCategoryTable || l.Code != CodeLengthMismatch {
		t.Error("NewLengthError mismatch")
	}

	c := NewConstraintError("value 101 above maximum 100")
	if c.Category != ErrCategoryTable || c.Code != CodeConstraintViolation {
		t.Error("NewConstraintError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
