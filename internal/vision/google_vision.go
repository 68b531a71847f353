package vision

import (
	"context"
	"io"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"receipts/pkg/models"
)

// GoogleVisionService implements Service using the Cloud Vision API.
type GoogleVisionService struct {
	client *vision.ImageAnnotatorClient
}

// NewGoogleVisionService creates a new OCR service with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionService(ctx context.Context) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &GoogleVisionService{client: client}, nil
}

// NewGoogleVisionServiceWithClient creates a new OCR service with an explicit client (for testing).
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionService {
	return &GoogleVisionService{client: client}
}

// Recognize extracts text from a receipt image using TEXT_DETECTION.
func (g *GoogleVisionService) Recognize(ctx context.Context, image io.Reader) (*models.RawOCRResult, error) {
	const op = "Recognize"

	imgBytes, err := io.ReadAll(image)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}

	if len(imgBytes) > MaxImageSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, "image exceeds synchronous processing limit")
	}
	if len(imgBytes) == 0 {
		return nil, WrapOCRError(op, ErrInvalidImage, "empty image payload")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imgBytes},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, classifyAPIError(op, err)
	}

	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, annotation.Error.Message)
	}

	result := buildResult(annotation)
	if strings.TrimSpace(result.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "no text detected")
	}

	return result, nil
}

// buildResult converts a Vision annotation into a RawOCRResult. The first
// text annotation is the full-image aggregate; the rest are word-level
// regions with confidences and bounding polygons.
func buildResult(annotation *visionpb.AnnotateImageResponse) *models.RawOCRResult {
	result := &models.RawOCRResult{}

	if annotation.FullTextAnnotation != nil {
		result.Text = annotation.FullTextAnnotation.Text
	} else if len(annotation.TextAnnotations) > 0 {
		result.Text = annotation.TextAnnotations[0].Description
	}

	for i, ta := range annotation.TextAnnotations {
		if i == 0 {
			continue // aggregate annotation, not a region
		}
		region := models.Region{
			Text:       ta.Description,
			Confidence: float64(ta.Confidence),
		}
		if ta.BoundingPoly != nil {
			region.BoundingBox = boundingBoxFromPoly(ta.BoundingPoly)
		}
		result.Regions = append(result.Regions, region)
	}

	return result
}

func boundingBoxFromPoly(poly *visionpb.BoundingPoly) models.BoundingBox {
	if len(poly.Vertices) == 0 {
		return models.BoundingBox{}
	}
	minX, minY := int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		x, y := int(v.X), int(v.Y)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return models.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// classifyAPIError maps Google API failures onto the adapter's error
// taxonomy so the retry layer can distinguish transient from permanent.
func classifyAPIError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "permission"):
		return WrapOCRError(op, ErrAuthFailed, errStr)
	case strings.Contains(errStr, "ResourceExhausted") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota"):
		return WrapOCRError(op, ErrQuotaExceeded, errStr)
	case strings.Contains(errStr, "InvalidArgument") ||
		strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapOCRError(op, ErrInvalidImage, errStr)
	case strings.Contains(errStr, "Unavailable") ||
		strings.Contains(errStr, "UNAVAILABLE") ||
		strings.Contains(errStr, "Internal") ||
		strings.Contains(errStr, "connection reset"):
		return WrapOCRError(op, ErrServiceUnavailable, errStr)
	default:
		return WrapOCRError(op, ErrOCRFailed, errStr)
	}
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
