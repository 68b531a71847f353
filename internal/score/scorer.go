// Package score aggregates field-level confidences into an overall receipt
// confidence and reconciles the extracted totals arithmetic.
package score

import (
	"fmt"

	"github.com/rs/zerolog"

	"receipts/internal/logger"
	"receipts/pkg/models"
)

// Weights of the aggregate. Totals are load-bearing for reconciliation, so
// they count double; items are weighted by their share of the receipt total.
const (
	storeWeight  = 1.0
	totalsWeight = 2.0
)

// Scorer computes the aggregate confidence of an extracted receipt. The
// tolerance and penalty are configuration, not fixed law.
type Scorer struct {
	// ToleranceCents is the reconciliation tolerance in cents.
	ToleranceCents int64

	// Penalty is multiplied into the aggregate when reconciliation fails.
	Penalty float64

	log zerolog.Logger
}

// New creates a Scorer. Zero tolerance means exact-to-the-cent; a
// non-positive penalty falls back to 0.7.
func New(toleranceCents int64, penalty float64) *Scorer {
	if penalty <= 0 || penalty > 1 {
		penalty = 0.7
	}
	if toleranceCents < 0 {
		toleranceCents = 0
	}
	return &Scorer{
		ToleranceCents: toleranceCents,
		Penalty:        penalty,
		log:            logger.WithComponent("scorer"),
	}
}

// Score returns the aggregate confidence in [0,1] and any non-fatal
// reconciliation warnings. A reconciliation mismatch penalizes the
// aggregate but never blocks assembly.
func (s *Scorer) Score(er *models.ExtractedReceipt) (float64, []string) {
	var weightSum, confSum float64

	if er.Store != nil {
		weightSum += storeWeight
		confSum += storeWeight * er.Store.Confidence
	}

	receiptTotal := s.referenceTotal(er)
	for _, item := range er.Items {
		weight := 1.0
		if receiptTotal > 0 {
			weight = item.Price / receiptTotal
		}
		weightSum += weight
		confSum += weight * item.Confidence
	}

	if tc, ok := totalsConfidence(er.Totals); ok {
		weightSum += totalsWeight
		confSum += totalsWeight * tc
	}

	var confidence float64
	if weightSum > 0 {
		confidence = confSum / weightSum
	}

	warnings := s.reconcile(er, &confidence)

	return models.ClampConfidence(confidence), warnings
}

// referenceTotal is the denominator for item weighting: the extracted total
// when present, otherwise the sum of item prices.
func (s *Scorer) referenceTotal(er *models.ExtractedReceipt) float64 {
	if er.Totals != nil && er.Totals.Total != nil && er.Totals.Total.Value > 0 {
		return er.Totals.Total.Value
	}
	var sum float64
	for _, item := range er.Items {
		sum += item.Price
	}
	return sum
}

// totalsConfidence is the mean confidence of the totals fields present.
func totalsConfidence(totals *models.ExtractedTotals) (float64, bool) {
	if totals == nil {
		return 0, false
	}
	fields := []*models.Field[float64]{
		totals.Subtotal, totals.Tax, totals.Total, totals.Tip, totals.Discount,
	}
	var sum float64
	var n int
	for _, f := range fields {
		if f != nil {
			sum += f.Confidence
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// reconcile checks subtotal + tax − discount against the extracted total.
// Requires both subtotal and total; tax and discount default to 0 when
// absent. Exceeding the tolerance applies the penalty and emits a warning.
func (s *Scorer) reconcile(er *models.ExtractedReceipt, confidence *float64) []string {
	if er.Totals == nil || er.Totals.Subtotal == nil || er.Totals.Total == nil {
		return nil
	}

	subtotal := er.Totals.Subtotal.Value
	total := er.Totals.Total.Value
	var tax, discount float64
	if er.Totals.Tax != nil {
		tax = er.Totals.Tax.Value
	}
	if er.Totals.Discount != nil {
		discount = er.Totals.Discount.Value
	}

	expected := models.Cents(subtotal) + models.Cents(tax) - models.Cents(discount)
	diff := expected - models.Cents(total)
	if diff < 0 {
		diff = -diff
	}
	if diff <= s.ToleranceCents {
		return nil
	}

	*confidence *= s.Penalty

	warning := fmt.Sprintf(
		"totals do not reconcile: subtotal %.2f + tax %.2f - discount %.2f = %.2f, but total is %.2f",
		subtotal, tax, discount, float64(expected)/100, total)

	s.log.Warn().
		Int64("difference_cents", diff).
		Int64("tolerance_cents", s.ToleranceCents).
		Float64("penalty", s.Penalty).
		Msg("Reconciliation mismatch")

	return []string{warning}
}
