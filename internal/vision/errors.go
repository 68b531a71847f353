package vision

import (
	"errors"
	"fmt"
)

// Common OCR errors. Transient errors are safe to retry; everything else
// surfaces immediately.
var (
	// ErrImageTooLarge is returned when the image exceeds the maximum file size limit.
	ErrImageTooLarge = errors.New("image size exceeds the maximum limit (20MB)")

	// ErrInvalidImage is returned when the provided data is not a recognizable image.
	ErrInvalidImage = errors.New("invalid or unsupported image data")

	// ErrMissingCredentials is returned when no Google Cloud credentials are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrAuthFailed is returned when the configured credentials are rejected.
	ErrAuthFailed = errors.New("Google Cloud authentication failed")

	// ErrQuotaExceeded is returned when API quota limits are exceeded. Not retried.
	ErrQuotaExceeded = errors.New("OCR API quota exceeded")

	// ErrEmptyDocument is returned when the image contains no readable text.
	ErrEmptyDocument = errors.New("image contains no readable text")

	// ErrServiceUnavailable is returned for transient backend failures. Retried.
	ErrServiceUnavailable = errors.New("OCR service temporarily unavailable")

	// ErrOCRFailed is returned for unclassified OCR failures.
	ErrOCRFailed = errors.New("OCR processing failed")
)

// IsTransient reports whether an OCR failure is worth retrying. Invalid
// input, auth and quota failures are permanent; backend unavailability is not.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// OCRError wraps errors with additional context about the OCR failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("vision: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("vision: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}
