package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"receipts/internal/config"
	"receipts/internal/logger"
	"receipts/internal/pipeline"
	"receipts/internal/template"
	"receipts/internal/vision"
	"receipts/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [image-file]",
	Short: "Parse a receipt image into a structured record",
	Long: `Run the full extraction pipeline over a receipt image: OCR the image,
sanitize the recognized text, detect the merchant template, extract the
fields and score the result.

The output is a JSON response with the assembled receipt, an overall
confidence value and any non-fatal warnings. When required fields cannot
be extracted the response reports failure and carries the partial fields.

Required environment variables for OCR:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Parse a receipt photo
  receipts parse receipt.jpg

  # Save the structured result to a file
  receipts parse receipt.jpg -o result.json

  # Skip OCR and parse already-recognized text
  receipts parse --text extracted.txt

  # Parse with a custom timeout
  receipts parse large-scan.png --timeout 120`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	parseCmd.Flags().StringP("text", "t", "", "Parse a text file instead of running OCR on an image")
	parseCmd.Flags().Bool("compact", false, "Emit compact JSON instead of indented")
	parseCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	outputPath, _ := cmd.Flags().GetString("output")
	textPath, _ := cmd.Flags().GetString("text")
	compact, _ := cmd.Flags().GetBool("compact")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if textPath == "" && len(args) == 0 {
		return fmt.Errorf("provide an image file argument or --text")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	var p *pipeline.Pipeline
	if textPath == "" {
		ocrService, svcErr := createOCRService(ctx, cfg, log)
		if svcErr != nil {
			return svcErr
		}
		p = pipeline.New(cfg, ocrService, registry)
	} else {
		p = pipeline.New(cfg, nil, registry)
	}

	startTime := time.Now()
	resp, err := parseInput(ctx, p, args, textPath, log)
	if err != nil {
		return err
	}

	log.Info().
		Bool("success", resp.Success).
		Int("warnings", len(resp.Errors)).
		Dur("duration", time.Since(startTime)).
		Msg("Receipt parsing completed")

	return outputResponse(resp, outputPath, compact, log)
}

func parseInput(ctx context.Context, p *pipeline.Pipeline, args []string, textPath string, log zerolog.Logger) (resp *models.ParseResponse, err error) {
	if textPath != "" {
		text, readErr := os.ReadFile(textPath)
		if readErr != nil {
			log.Error().Err(readErr).Str("file", textPath).Msg("Failed to read text file")
			return nil, fmt.Errorf("failed to read text file: %w", readErr)
		}
		return p.ParseText(ctx, string(text), nil), nil
	}

	imagePath := args[0]
	if err := validateImageFile(imagePath, log); err != nil {
		return nil, err
	}

	imageFile, err := os.Open(imagePath)
	if err != nil {
		log.Error().Err(err).Str("file", imagePath).Msg("Failed to open image file")
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() {
		if closeErr := imageFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close image file")
		}
	}()

	log.Info().Str("file", imagePath).Msg("Processing receipt image")
	return p.Parse(ctx, imageFile), nil
}

// validateImageFile checks that the path points at a usable image file.
func validateImageFile(imagePath string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", imagePath).Msg("Permission denied accessing image file")
			return fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", imagePath).Msg("Path is not a regular file")
		return fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", imagePath).Msg("Image file is empty")
		return fmt.Errorf("image file is empty: %s", imagePath)
	}

	if fileInfo.Size() > vision.MaxImageSizeBytes {
		log.Error().
			Str("file", imagePath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", vision.MaxImageSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), vision.MaxImageSizeBytes)
	}

	return nil
}

// createContextWithTimeout creates a context with timeout and signal handling.
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling receipt processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// buildRegistry assembles the template registry: built-in merchant
// templates plus any extra templates from the configured YAML file.
func buildRegistry(cfg *config.Config, log zerolog.Logger) (*template.Registry, error) {
	templates := template.Builtins()

	if cfg.TemplatesFile != "" {
		extra, err := template.LoadFile(cfg.TemplatesFile)
		if err != nil {
			log.Error().Err(err).Str("file", cfg.TemplatesFile).Msg("Failed to load templates file")
			return nil, fmt.Errorf("failed to load templates file: %w", err)
		}
		templates = append(templates, extra...)
		log.Debug().
			Int("extra", len(extra)).
			Str("file", cfg.TemplatesFile).
			Msg("Loaded additional templates")
	}

	registry, err := template.NewRegistry(templates...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build template registry")
		return nil, fmt.Errorf("failed to build template registry: %w", err)
	}
	return registry, nil
}

// createOCRService creates the configured OCR backend wrapped with retry.
func createOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (vision.Service, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Use Application Default Credentials (if gcloud is configured):\n" +
			"   gcloud auth application-default login\n\n" +
			"4. Check that your .env file contains the credentials variables")
	}

	var inner vision.Service
	var err error

	switch cfg.OCRProvider {
	case "documentai":
		inner, err = vision.NewDocumentAIService(ctx, vision.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		})
	default:
		inner, err = vision.NewGoogleVisionService(ctx)
	}
	if err != nil {
		if errors.Is(err, vision.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
				"1. Credentials file exists and is readable\n"+
				"2. JSON format is valid\n"+
				"3. Service account has proper permissions\n\n"+
				"Original error: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().
		Str("provider", cfg.OCRProvider).
		Int("max_attempts", cfg.OCRMaxAttempts).
		Msg("OCR service created")
	return vision.NewRetryingService(inner, cfg.OCRMaxAttempts, cfg.OCRRetryBaseDelay), nil
}

// outputResponse marshals the parse response and writes it to the
// requested destination.
func outputResponse(resp *models.ParseResponse, outputPath string, compact bool, log zerolog.Logger) error {
	var outputData []byte
	var err error

	if compact {
		outputData, err = json.Marshal(resp)
	} else {
		outputData, err = json.MarshalIndent(resp, "", "  ")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Parse results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
