// Package pipeline composes the receipt extraction stages: OCR, sanitize,
// template detection, field extraction, confidence scoring and assembly.
// Each request runs the stages strictly in sequence on one stateless
// pipeline instance; concurrent requests share only the read-only template
// registry.
package pipeline

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receipts/internal/assemble"
	"receipts/internal/config"
	"receipts/internal/extract"
	"receipts/internal/logger"
	"receipts/internal/sanitize"
	"receipts/internal/score"
	"receipts/internal/template"
	"receipts/internal/vision"
	"receipts/pkg/models"
)

// Pipeline runs the extraction stages for one receipt at a time. Safe for
// concurrent use: all stages are pure transformations and the extractor
// strategy table is populated once at construction.
type Pipeline struct {
	ocr        vision.Service
	sanitizer  *sanitize.Sanitizer
	detector   *template.Detector
	extractors map[string]extract.Extractor
	generic    extract.Extractor
	scorer     *score.Scorer
	assembler  *assemble.Assembler
}

// New builds a pipeline over the given OCR service and template registry.
// The strategy table is keyed by template ID and never mutated afterwards.
func New(cfg *config.Config, ocr vision.Service, registry *template.Registry) *Pipeline {
	extractors := make(map[string]extract.Extractor, registry.Len())
	for _, t := range registry.Templates() {
		extractors[t.ID] = extract.NewPatterned(t)
	}

	return &Pipeline{
		ocr:        ocr,
		sanitizer:  sanitize.New(cfg.MaxTextLength),
		detector:   template.NewDetector(registry, cfg.AcceptThreshold),
		extractors: extractors,
		generic:    extract.NewGeneric(),
		scorer:     score.New(cfg.ToleranceCents, cfg.ReconcilePenalty),
		assembler:  assemble.New(cfg.RecomputePenalty),
	}
}

// Parse runs the full pipeline for one receipt image. OCR is the only
// suspension point; every later stage is a synchronous in-memory
// transformation. All paths terminate in a well-formed response.
func (p *Pipeline) Parse(ctx context.Context, image io.Reader) *models.ParseResponse {
	log := logger.WithRequestID(uuid.NewString())
	log.Debug().Msg("Receipt request received")

	raw, err := p.ocr.Recognize(ctx, image)
	if err != nil {
		log.Error().Err(err).Msg("OCR failed")
		return &models.ParseResponse{
			Success: false,
			Errors:  []string{err.Error()},
		}
	}
	log.Debug().
		Int("text_length", len(raw.Text)).
		Int("regions", len(raw.Regions)).
		Msg("OCR complete")

	return p.process(log, raw)
}

// ParseText runs stages 2-6 over already-recognized text. Used by tests
// and callers that bring their own OCR output.
func (p *Pipeline) ParseText(_ context.Context, rawText string, regions []models.Region) *models.ParseResponse {
	log := logger.WithRequestID(uuid.NewString())
	return p.process(log, &models.RawOCRResult{Text: rawText, Regions: regions})
}

func (p *Pipeline) process(log zerolog.Logger, raw *models.RawOCRResult) *models.ParseResponse {
	text, warnings, err := p.sanitizer.Sanitize(raw.Text)
	if err != nil {
		log.Error().Err(err).Msg("Sanitization failed")
		return &models.ParseResponse{
			Success: false,
			Errors:  []string{err.Error()},
		}
	}
	log.Debug().Int("sanitized_length", len(text)).Msg("Text sanitized")

	detection := p.detector.Detect(text)
	log.Debug().
		Str("template", detection.Template.ID).
		Float64("score", detection.Score).
		Msg("Template selected")

	extractor := p.extractorFor(detection.Template)
	extracted := extractor.Extract(text, raw.Regions)
	log.Debug().
		Bool("store", extracted.Store != nil).
		Int("items", len(extracted.Items)).
		Bool("totals", extracted.Totals != nil).
		Msg("Fields extracted")

	confidence, scoreWarnings := p.scorer.Score(extracted)
	warnings = append(warnings, scoreWarnings...)
	log.Debug().Float64("confidence", confidence).Msg("Confidence scored")

	// The sanitized text is what gets retained for audit; raw OCR output
	// may still carry markup and never leaves the pipeline.
	return p.assembler.Assemble(extracted, confidence, warnings, string(text))
}

func (p *Pipeline) extractorFor(t *template.Template) extract.Extractor {
	if e, ok := p.extractors[t.ID]; ok {
		return e
	}
	return p.generic
}
