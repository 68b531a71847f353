package sanitize

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when the raw text is not valid UTF-8 and
// cannot be decoded at all. This is the sanitizer's only fatal failure.
var ErrInvalidEncoding = errors.New("text is not valid UTF-8")

// SanitizationError wraps errors with additional context about the
// sanitization failure.
type SanitizationError struct {
	// Op is the operation that failed (e.g., "Sanitize").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *SanitizationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("sanitize: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("sanitize: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SanitizationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *SanitizationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSanitizationError creates a new SanitizationError.
func NewSanitizationError(op string, err error, details string) *SanitizationError {
	return &SanitizationError{Op: op, Err: err, Details: details}
}
