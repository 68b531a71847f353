// Package vision adapts external OCR backends to the receipt pipeline.
//
// Two backends are supported: Google Cloud Vision (TEXT_DETECTION on image
// bytes) and Google Document AI (OCR processor). Both return the full
// recognized text plus per-region confidences when the backend provides
// them. The adapter is the pipeline's only suspension point; retry with
// exponential backoff for transient failures lives in RetryingService.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID (Document AI only)
//
// Backend Limitations:
//   - Maximum image size: 20MB for synchronous processing
//   - Supported formats: JPEG, PNG, GIF, BMP, WEBP, TIFF
package vision

import (
	"context"
	"io"

	"receipts/pkg/models"
)

// MaxImageSizeBytes is the maximum image size for synchronous processing (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// Service is the OCR capability the pipeline consumes. Implementations are
// modeled strictly as collaborator request/response contracts: image in,
// RawOCRResult or error out.
type Service interface {
	// Recognize extracts text from an image. Returns the full recognized
	// text with optional per-region confidences, or an error classified
	// as transient (see IsTransient) or permanent.
	Recognize(ctx context.Context, image io.Reader) (*models.RawOCRResult, error)
}
