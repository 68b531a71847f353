package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"receipts/pkg/models"
)

// DocumentAIConfig holds configuration for the Document AI OCR backend.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the Document AI OCR processor ID.
	ProcessorID string
}

// DocumentAIService implements Service using a Document AI OCR processor.
// Document AI provides line-level layout confidences, which map directly
// onto region confidences.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// NewDocumentAIService creates the backend with credentials from environment.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrMissingCredentials, "GOOGLE_CLOUD_PROJECT is required for Document AI")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIService{client: client, config: config}, nil
}

// NewDocumentAIServiceWithClient creates the backend with an explicit client (for testing).
func NewDocumentAIServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIService {
	return &DocumentAIService{client: client, config: config}
}

// Recognize extracts text from a receipt image via the OCR processor.
func (d *DocumentAIService) Recognize(ctx context.Context, image io.Reader) (*models.RawOCRResult, error) {
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

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imgBytes,
				MimeType: detectMimeType(imgBytes),
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, classifyAPIError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	doc := resp.Document
	if strings.TrimSpace(doc.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "no text detected")
	}

	result := &models.RawOCRResult{Text: doc.Text}
	for _, page := range doc.Pages {
		for _, line := range page.Lines {
			if line.Layout == nil {
				continue
			}
			region := models.Region{
				Text:       anchorText(doc.Text, line.Layout.TextAnchor),
				Confidence: float64(line.Layout.Confidence),
			}
			if poly := line.Layout.BoundingPoly; poly != nil && len(poly.Vertices) > 0 {
				region.BoundingBox = boundingBoxFromVertices(poly.Vertices)
			}
			if region.Text != "" {
				result.Regions = append(result.Regions, region)
			}
		}
	}

	return result, nil
}

func (d *DocumentAIService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// anchorText resolves a Document AI text anchor into the substring of the
// full document text it references.
func anchorText(fullText string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(fullText) || start >= end {
			continue
		}
		sb.WriteString(fullText[start:end])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func boundingBoxFromVertices(vertices []*documentaipb.Vertex) models.BoundingBox {
	minX, minY := int(vertices[0].X), int(vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
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

// detectMimeType sniffs the image format from magic bytes. Document AI
// requires an explicit MIME type for raw documents.
func detectMimeType(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return "image/png"
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "image/gif"
	case len(data) >= 4 && (bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*"))):
		return "image/tiff"
	case len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	case len(data) >= 2 && bytes.Equal(data[:2], []byte("BM")):
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

// Close closes the underlying Document AI client.
func (d *DocumentAIService) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
