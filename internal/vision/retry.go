package vision

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"receipts/internal/logger"
	"receipts/pkg/models"
)

// RetryingService decorates a Service with bounded retry for transient
// failures. Permanent failures (invalid image, auth, quota) surface
// immediately. Backoff doubles per attempt starting at BaseDelay; context
// cancellation abandons the in-flight sequence between attempts.
type RetryingService struct {
	inner       Service
	maxAttempts int
	baseDelay   time.Duration
	log         zerolog.Logger
}

// NewRetryingService wraps inner with retry. maxAttempts counts the first
// attempt, so maxAttempts=3 means at most two retries.
func NewRetryingService(inner Service, maxAttempts int, baseDelay time.Duration) *RetryingService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingService{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         logger.WithComponent("vision-retry"),
	}
}

// Recognize calls the wrapped backend, retrying transient failures up to the
// configured ceiling. The image is buffered once so every attempt re-reads
// it from the start.
func (r *RetryingService) Recognize(ctx context.Context, image io.Reader) (*models.RawOCRResult, error) {
	const op = "Recognize"

	imgBytes, err := io.ReadAll(image)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}

	delay := r.baseDelay
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapOCRError(op, err, "request canceled")
		}

		result, err := r.inner.Recognize(ctx, bytes.NewReader(imgBytes))
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}

		if attempt == r.maxAttempts {
			break
		}

		r.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Dur("backoff", delay).
			Msg("Transient OCR failure, retrying")

		select {
		case <-ctx.Done():
			return nil, WrapOCRError(op, ctx.Err(), "request canceled during backoff")
		case <-time.After(delay):
		}
		delay *= 2
	}

	r.log.Error().
		Err(lastErr).
		Int("attempts", r.maxAttempts).
		Msg("OCR failed after retry ceiling")

	return nil, lastErr
}
