package condition

import (
	"errors"
	"fmt"
)

// ValidationError reports a Condition rejected at construction time.
type ValidationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Key is the offending filter key, when there is one.
	Key string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes validation errors.
type ErrorCode string

const (
	// ErrCodeElemMatchWithoutJoin indicates $ELEM_MATCH (or one of its sub-keys)
	// is not covered by a declared join base.
	ErrCodeElemMatchWithoutJoin ErrorCode = "ELEM_MATCH_WITHOUT_JOIN"

	// ErrCodeNegativeWithJoin indicates Negative was combined with a join.
	ErrCodeNegativeWithJoin ErrorCode = "NEGATIVE_WITH_JOIN"

	// ErrCodeInvalidSubCondition indicates a logical group holds a value of
	// the wrong shape.
	ErrCodeInvalidSubCondition ErrorCode = "INVALID_SUB_CONDITION"

	// ErrCodeInvalidKey indicates a filter key that cannot be parsed.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// ErrCodeInvalidArguments indicates malformed builder arguments.
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (key=%q)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HasCode reports whether err wraps a ValidationError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func newValidationError(code ErrorCode, key, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewValidationError builds a ValidationError for use by the lowering and
// compilation packages.
func NewValidationError(code ErrorCode, key, format string, args ...any) *ValidationError {
	return newValidationError(code, key, format, args...)
}
