package vision_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"receipts/internal/vision"
)

// Example demonstrates basic usage of the OCR adapter.
func Example() {
	// Create context with timeout for OCR processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create service - credentials handled internally from environment
	svc, err := vision.NewGoogleVisionService(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer svc.Close()

	// Open receipt image
	img, err := os.Open("receipt.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer img.Close()

	// Recognize text
	result, err := svc.Recognize(ctx, img)
	if err != nil {
		log.Fatalf("Failed to recognize text: %v", err)
	}

	fmt.Printf("Recognized text (%d characters, %d regions):\n%s\n",
		len(result.Text), len(result.Regions), result.Text)
}

// ExampleNewRetryingService demonstrates wrapping a backend with bounded retry.
func ExampleNewRetryingService() {
	ctx := context.Background()

	backend, err := vision.NewGoogleVisionService(ctx)
	if err != nil {
		// Handle credential errors
		if err == vision.ErrMissingCredentials {
			log.Fatalf("Please set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
		}
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer backend.Close()

	// Up to 3 attempts with exponential backoff starting at 500ms.
	// Only transient failures are retried.
	svc := vision.NewRetryingService(backend, 3, 500*time.Millisecond)

	img, err := os.Open("receipt.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer img.Close()

	result, err := svc.Recognize(ctx, img)
	if err != nil {
		log.Fatalf("Failed to recognize text: %v", err)
	}

	fmt.Printf("Recognized %d characters\n", len(result.Text))
}
