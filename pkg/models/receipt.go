package models

import (
	"math"
	"time"
)

// FieldSource records which extraction strategy produced a field value.
type FieldSource string

const (
	// SourceTemplate marks values produced by a merchant-specific pattern.
	SourceTemplate FieldSource = "template"

	// SourceGeneric marks values produced by the generic line heuristics.
	SourceGeneric FieldSource = "generic"

	// SourceDefault marks values filled in as safe defaults (e.g. quantity 1).
	SourceDefault FieldSource = "default"
)

// Field is a single extracted value with the confidence the extractor
// assigned to it. Confidence is always in [0,1].
type Field[T any] struct {
	Value      T           `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
}

// NewField builds a Field with the confidence clamped into [0,1].
func NewField[T any](value T, confidence float64, source FieldSource) *Field[T] {
	return &Field[T]{Value: value, Confidence: ClampConfidence(confidence), Source: source}
}

// BoundingBox is the pixel-space rectangle an OCR region was detected in.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is one OCR-detected text region with its recognition confidence.
type Region struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// RawOCRResult is the output of the OCR backend for one image: the full
// recognized text plus optional per-region confidences. It is produced once
// per request and never mutated afterwards.
type RawOCRResult struct {
	Text    string   `json:"text"`
	Regions []Region `json:"regions,omitempty"`
}

// SanitizedText is receipt text that has passed sanitization: valid UTF-8,
// free of markup and control characters, whitespace-normalized.
type SanitizedText string

// ExtractedItem is one candidate line item with its extraction confidence.
type ExtractedItem struct {
	Name       string      `json:"name"`
	Quantity   int         `json:"quantity"`
	UnitPrice  float64     `json:"unit_price,omitempty"`
	Price      float64     `json:"price"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
}

// ExtractedTotals holds whichever totals lines the extractor found. Absent
// fields are nil, never zero-valued sentinels.
type ExtractedTotals struct {
	Subtotal *Field[float64] `json:"subtotal,omitempty"`
	Tax      *Field[float64] `json:"tax,omitempty"`
	Total    *Field[float64] `json:"total,omitempty"`
	Tip      *Field[float64] `json:"tip,omitempty"`
	Discount *Field[float64] `json:"discount,omitempty"`
}

// ExtractedPayment holds payment metadata found on the receipt.
type ExtractedPayment struct {
	Method    *Field[string] `json:"method,omitempty"`
	CardLast4 *Field[string] `json:"card_last4,omitempty"`
}

// ExtractedReceipt is the partial bag of candidate fields the extractor
// produces. It is always produced, even when extraction finds nothing; the
// assembler decides whether it is complete enough to become a Receipt.
// Items preserve source line order.
type ExtractedReceipt struct {
	Store   *Field[string]    `json:"store,omitempty"`
	Date    *Field[time.Time] `json:"date,omitempty"`
	Items   []ExtractedItem   `json:"items,omitempty"`
	Totals  *ExtractedTotals  `json:"totals,omitempty"`
	Payment *ExtractedPayment `json:"payment,omitempty"`
}

// Item is a validated line item on an assembled Receipt.
type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	Price     float64 `json:"price"`
	Category  string  `json:"category,omitempty"`
	TaxRate   float64 `json:"tax_rate,omitempty"`
}

// Totals is the validated totals block of an assembled Receipt.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
	Tip      float64 `json:"tip,omitempty"`
	Discount float64 `json:"discount,omitempty"`
}

// PaymentInfo is the validated payment block of an assembled Receipt.
type PaymentInfo struct {
	Method    string `json:"method"`
	CardLast4 string `json:"card_last4,omitempty"`
}

// Receipt is the fully assembled, validated record. It is only emitted when
// at least one item and a positive total are present. The raw OCR text is
// retained for audit.
type Receipt struct {
	Store      string       `json:"store"`
	Date       *time.Time   `json:"date,omitempty"`
	Items      []Item       `json:"items"`
	Totals     Totals       `json:"totals"`
	Payment    *PaymentInfo `json:"payment,omitempty"`
	Confidence float64      `json:"confidence"`
	RawText    string       `json:"raw_text,omitempty"`
}

// ParseResponse is the only artifact that crosses the system boundary.
// Data is a *Receipt on success and a *ExtractedReceipt on partial failure.
// Errors carries fatal errors on failure and non-fatal warnings on success.
type ParseResponse struct {
	Success    bool     `json:"success"`
	Data       any      `json:"data,omitempty"`
	RawText    string   `json:"rawText,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Cents converts a currency amount to integer cents. All amount comparisons
// go through this so tolerance checks are exact.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
