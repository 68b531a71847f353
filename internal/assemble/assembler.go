// Package assemble validates an extracted receipt, fills safe defaults and
// emits the final ParseResponse. This is the last pipeline stage; every
// path through it terminates in a well-formed response.
package assemble

import (
	"github.com/rs/zerolog"

	"receipts/internal/logger"
	"receipts/pkg/models"
)

// Assembler turns an ExtractedReceipt plus the aggregate confidence into
// the final response. RecomputePenalty applies when the totals block had to
// be recomputed from item prices.
type Assembler struct {
	RecomputePenalty float64

	log zerolog.Logger
}

// New creates an Assembler. A penalty outside (0,1] falls back to 0.8.
func New(recomputePenalty float64) *Assembler {
	if recomputePenalty <= 0 || recomputePenalty > 1 {
		recomputePenalty = 0.8
	}
	return &Assembler{
		RecomputePenalty: recomputePenalty,
		log:              logger.WithComponent("assembler"),
	}
}

// Assemble validates the mandatory fields (at least one item, a positive
// total) and builds the response. Missing totals are recomputed from items
// with a confidence penalty; entirely missing mandatory fields yield the
// pipeline's only designed hard failure: success=false with the partial
// extraction and the specific missing-field errors.
func (a *Assembler) Assemble(er *models.ExtractedReceipt, confidence float64, warnings []string, rawText string) *models.ParseResponse {
	totals, recomputed := a.resolveTotals(er)
	if recomputed {
		confidence *= a.RecomputePenalty
		warnings = append(warnings, "totals recomputed from item prices")
	}

	var missing []string
	if len(er.Items) == 0 {
		missing = append(missing, "no line items could be extracted")
	}
	if totals == nil || totals.Total <= 0 {
		missing = append(missing, "no positive total could be extracted")
	}

	if len(missing) > 0 {
		a.log.Warn().
			Strs("missing", missing).
			Msg("Mandatory receipt fields missing, assembly failed")
		return &models.ParseResponse{
			Success: false,
			Data:    er,
			RawText: rawText,
			Errors:  missing,
		}
	}

	receipt := &models.Receipt{
		Store:      storeOrDefault(er),
		Items:      buildItems(er.Items),
		Totals:     *totals,
		Confidence: models.ClampConfidence(confidence),
		RawText:    rawText,
	}
	if er.Date != nil {
		d := er.Date.Value
		receipt.Date = &d
	}
	if er.Payment != nil {
		receipt.Payment = buildPayment(er.Payment)
	}

	a.log.Info().
		Str("store", receipt.Store).
		Int("items", len(receipt.Items)).
		Float64("total", receipt.Totals.Total).
		Float64("confidence", receipt.Confidence).
		Int("warnings", len(warnings)).
		Msg("Receipt assembled")

	conf := receipt.Confidence
	return &models.ParseResponse{
		Success:    true,
		Data:       receipt,
		RawText:    rawText,
		Confidence: &conf,
		Errors:     warnings,
	}
}

// resolveTotals returns the validated totals block. When the totals block
// is absent but items exist, subtotal and total are recomputed as the sum
// of item prices with tax treated as 0.
func (a *Assembler) resolveTotals(er *models.ExtractedReceipt) (*models.Totals, bool) {
	if er.Totals != nil && er.Totals.Total != nil {
		t := &models.Totals{Total: er.Totals.Total.Value}
		if er.Totals.Subtotal != nil {
			t.Subtotal = er.Totals.Subtotal.Value
		} else {
			t.Subtotal = t.Total
		}
		if er.Totals.Tax != nil {
			t.Tax = er.Totals.Tax.Value
		}
		if er.Totals.Tip != nil {
			t.Tip = er.Totals.Tip.Value
		}
		if er.Totals.Discount != nil {
			t.Discount = er.Totals.Discount.Value
		}
		return t, false
	}

	if len(er.Items) == 0 {
		return nil, false
	}

	var sum float64
	for _, item := range er.Items {
		if item.Price > 0 {
			sum += item.Price
		}
	}
	if sum <= 0 {
		return nil, false
	}

	return &models.Totals{Subtotal: sum, Total: sum}, true
}

func storeOrDefault(er *models.ExtractedReceipt) string {
	if er.Store != nil && er.Store.Value != "" {
		return er.Store.Value
	}
	return "Unknown Store"
}

// buildItems clamps quantities to at least 1 and prices to non-negative.
func buildItems(extracted []models.ExtractedItem) []models.Item {
	items := make([]models.Item, 0, len(extracted))
	for _, e := range extracted {
		item := models.Item{
			Name:      e.Name,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
			Price:     e.Price,
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if item.Price < 0 {
			item.Price = 0
		}
		if item.UnitPrice < 0 {
			item.UnitPrice = 0
		}
		items = append(items, item)
	}
	return items
}

func buildPayment(p *models.ExtractedPayment) *models.PaymentInfo {
	info := &models.PaymentInfo{}
	if p.Method != nil {
		info.Method = p.Method.Value
	}
	if p.CardLast4 != nil {
		info.CardLast4 = p.CardLast4.Value
	}
	if info.Method == "" && info.CardLast4 == "" {
		return nil
	}
	return info
}
