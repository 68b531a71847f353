// Package extract turns sanitized receipt text into candidate fields, each
// tagged with a confidence. One implementation exists per merchant template
// plus a generic one for unmatched text. Extraction never fails: missing
// optional fields are simply absent from the result.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"receipts/pkg/models"
)

// Extractor is the per-template extraction strategy. Implementations are
// pure functions over the text and regions; they never return an error —
// whatever cannot be extracted stays absent.
type Extractor interface {
	Extract(text models.SanitizedText, regions []models.Region) *models.ExtractedReceipt
}

// Pattern-derived confidences. Template-specific patterns score higher than
// generic heuristics; defaults score lowest.
const (
	confTemplateStore = 0.95
	confTemplateItem  = 0.9
	confTemplateDate  = 0.9
	confGenericStore  = 0.6
	confGenericItem   = 0.7
	confTotalsExact   = 0.8
	confTotalsNoisy   = 0.65
	confDateBase      = 0.8
	confDateStep      = 0.05
	confPayment       = 0.7
	confCardFragment  = 0.85

	// defaultQtyPenalty applies when quantity 1 is assumed rather than read.
	defaultQtyPenalty = 0.9
)

var (
	// amountAtEnd captures a currency value terminating an item line.
	amountAtEnd = regexp.MustCompile(`^(.*\S)\s+[-]?[$€£]?\s?(\d{1,6}[.,]\d{2})$`)

	// anyAmount finds currency values anywhere on a line.
	anyAmount = regexp.MustCompile(`[-]?[$€£]?\s?\d{1,6}[.,]\d{2}`)

	// qtyPrefix matches leading multiplier tokens such as "2 x" or "2@".
	qtyPrefix = regexp.MustCompile(`^(\d{1,3})\s*[xX@]\s*`)

	// cardFragment matches a masked trailing card number ("**** 1234",
	// "xxxx1234", "ending in 1234").
	cardFragment = regexp.MustCompile(`(?i)(?:\*{2,}\s*|x{2,}\s*|ending\s+in\s+)(\d{4})\b`)

	hasLetter = regexp.MustCompile(`[A-Za-z]`)
)

// parseAmount converts a currency token to a float value. Comma decimals
// are accepted; currency symbols and interior spaces are dropped.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ' ':
			return -1
		case ',':
			return '.'
		default:
			return r
		}
	}, s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// firstAmount returns the first currency value on a line.
func firstAmount(line string) (float64, bool) {
	m := anyAmount.FindString(line)
	if m == "" {
		return 0, false
	}
	return parseAmount(m)
}

// splitLines breaks sanitized text into its lines. Sanitization has already
// trimmed and de-blanked them.
func splitLines(text models.SanitizedText) []string {
	if text == "" {
		return nil
	}
	return strings.Split(string(text), "\n")
}

// ocrDigitFix maps digits OCR commonly substitutes for letters back to the
// letters, for keyword matching only ("T0TAL" → "TOTAL").
var ocrDigitFix = strings.NewReplacer("0", "O", "1", "I", "5", "S", "8", "B")

// keywordFold uppercases a line and undoes common OCR digit-for-letter
// substitutions. Amounts get mangled by this, so it is only ever used for
// keyword matching, never for value extraction.
func keywordFold(line string) string {
	return ocrDigitFix.Replace(strings.ToUpper(line))
}

// regionConfidence looks up the OCR confidence of the region that covers a
// line, when the backend reported regions at all. Region confidence is
// propagated, never invented: absence returns ok=false.
func regionConfidence(line string, regions []models.Region) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	for _, r := range regions {
		if r.Confidence <= 0 {
			continue
		}
		rt := strings.TrimSpace(r.Text)
		if rt == "" {
			continue
		}
		if strings.Contains(rt, line) || strings.Contains(line, rt) {
			return models.ClampConfidence(r.Confidence), true
		}
	}
	return 0, false
}

// blend combines a pattern-derived confidence with the covering region's
// OCR confidence when one exists (arithmetic mean), and returns the pattern
// confidence unchanged otherwise.
func blend(patternConf float64, line string, regions []models.Region) float64 {
	if rc, ok := regionConfidence(line, regions); ok {
		return models.ClampConfidence((patternConf + rc) / 2)
	}
	return models.ClampConfidence(patternConf)
}

// cleanItemName strips dotted leaders and stray separators left between an
// item description and its price column.
func cleanItemName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ".·-* ")
	return strings.TrimSpace(name)
}
