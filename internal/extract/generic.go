package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"receipts/pkg/models"
)

// Generic extracts fields from receipts no template matched, using layout
// heuristics common to most receipts.
type Generic struct{}

// NewGeneric creates the generic extraction strategy.
func NewGeneric() *Generic {
	return &Generic{}
}

// totalsAliases maps totals fields to their keyword spellings, in match
// priority order. Subtotal precedes total so "SUBTOTAL" lines are never
// claimed by the total keyword.
var totalsAliases = []struct {
	field   string
	aliases []string
}{
	{"subtotal", []string{"SUBTOTAL", "SUB-TOTAL", "SUB TOTAL"}},
	{"tax", []string{"TAX", "VAT", "GST", "HST"}},
	{"tip", []string{"TIP", "GRATUITY"}},
	{"discount", []string{"DISCOUNT", "SAVINGS", "COUPON"}},
	{"total", []string{"TOTAL", "AMOUNT DUE", "BALANCE DUE"}},
}

// paymentMethods maps lowercase receipt tokens to canonical method names.
// Longer tokens are listed before their substrings.
var paymentMethods = []struct{ token, method string }{
	{"american express", "AMEX"},
	{"mastercard", "MASTERCARD"},
	{"apple pay", "APPLE PAY"},
	{"google pay", "GOOGLE PAY"},
	{"contactless", "CONTACTLESS"},
	{"discover", "DISCOVER"},
	{"debit", "DEBIT"},
	{"credit", "CREDIT"},
	{"visa", "VISA"},
	{"amex", "AMEX"},
	{"cash", "CASH"},
}

// datePatterns are tried in order, most specific first. The pattern index
// feeds the confidence: earlier patterns score higher.
var datePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "2006-01-02"},
	{regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`), "01/02/2006"},
	{regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`), "02.01.2006"},
	{regexp.MustCompile(`\b[A-Z][a-z]{2} \d{1,2}, \d{4}\b`), "Jan 2, 2006"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2}\b`), "1/2/06"},
}

// Extract applies the generic heuristics in priority order: store, items,
// totals, date, payment.
func (g *Generic) Extract(text models.SanitizedText, regions []models.Region) *models.ExtractedReceipt {
	lines := splitLines(text)
	er := &models.ExtractedReceipt{}

	extractStore(lines, regions, er)
	extractItems(lines, regions, er)
	extractTotals(lines, regions, er)
	extractDate(lines, er)
	extractPayment(lines, er)

	return er
}

// extractStore takes the first non-empty, non-numeric line near the top of
// the receipt as the store name.
func extractStore(lines []string, regions []models.Region, er *models.ExtractedReceipt) {
	limit := 4
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		if !hasLetter.MatchString(line) {
			continue
		}
		if _, isAmountLine := firstAmount(line); isAmountLine {
			continue
		}
		if isTotalsLine(line) || findPaymentMethod(line) != "" {
			continue
		}
		er.Store = models.NewField(line, blend(confGenericStore, line, regions), models.SourceGeneric)
		return
	}
}

// extractItems matches "<description> <amount>" lines, inferring quantity
// from a leading multiplier token or defaulting it to 1 with a confidence
// penalty.
func extractItems(lines []string, regions []models.Region, er *models.ExtractedReceipt) {
	storeLine := ""
	if er.Store != nil {
		storeLine = er.Store.Value
	}

	for _, line := range lines {
		if line == storeLine || isTotalsLine(line) || findPaymentMethod(line) != "" {
			continue
		}
		if isTenderLine(line) {
			continue
		}

		m := amountAtEnd.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		price, ok := parseAmount(m[2])
		if !ok || price < 0 {
			continue
		}

		namePart := m[1]
		quantity := 1
		explicitQty := false
		if qm := qtyPrefix.FindStringSubmatch(namePart); qm != nil {
			if q, err := strconv.Atoi(qm[1]); err == nil && q >= 1 {
				quantity = q
				explicitQty = true
				namePart = namePart[len(qm[0]):]
			}
		}

		name := cleanItemName(namePart)
		if name == "" || !hasLetter.MatchString(name) {
			continue
		}

		conf := blend(confGenericItem, line, regions)
		if !explicitQty {
			conf = models.ClampConfidence(conf * defaultQtyPenalty)
		}

		item := models.ExtractedItem{
			Name:       name,
			Quantity:   quantity,
			Price:      price,
			Confidence: conf,
			Source:     models.SourceGeneric,
		}
		if quantity > 1 {
			item.UnitPrice = math.Round(price/float64(quantity)*100) / 100
		}
		er.Items = append(er.Items, item)
	}
}

// extractTotals pairs recognized totals keywords with the nearest currency
// amount on the same or the following line. Keyword matching tolerates
// common OCR digit-for-letter noise ("T0TAL").
func extractTotals(lines []string, regions []models.Region, er *models.ExtractedReceipt) {
	totals := &models.ExtractedTotals{}
	found := false

	for i, line := range lines {
		field, noisy := totalsField(line)
		if field == "" {
			continue
		}

		amount, ok := firstAmount(line)
		amountLine := line
		if !ok && i+1 < len(lines) {
			amount, ok = firstAmount(lines[i+1])
			amountLine = lines[i+1]
		}
		if !ok {
			continue
		}

		conf := confTotalsExact
		if noisy {
			conf = confTotalsNoisy
		}
		f := models.NewField(amount, blend(conf, amountLine, regions), models.SourceGeneric)

		// First occurrence wins; later duplicates are ignored.
		switch field {
		case "subtotal":
			if totals.Subtotal == nil {
				totals.Subtotal = f
				found = true
			}
		case "tax":
			if totals.Tax == nil {
				totals.Tax = f
				found = true
			}
		case "tip":
			if totals.Tip == nil {
				totals.Tip = f
				found = true
			}
		case "discount":
			if totals.Discount == nil {
				totals.Discount = f
				found = true
			}
		case "total":
			if totals.Total == nil {
				totals.Total = f
				found = true
			}
		}
	}

	if found {
		er.Totals = totals
	}
}

// totalsField classifies a line as a totals line. noisy reports that the
// match needed OCR digit folding, which lowers the field confidence.
func totalsField(line string) (field string, noisy bool) {
	plain := strings.ToUpper(line)
	folded := keywordFold(line)

	for _, tf := range totalsAliases {
		for _, alias := range tf.aliases {
			if strings.Contains(plain, alias) {
				return tf.field, false
			}
			if strings.Contains(folded, alias) {
				return tf.field, true
			}
		}
	}
	return "", false
}

func isTotalsLine(line string) bool {
	field, _ := totalsField(line)
	return field != ""
}

// isTenderLine recognizes tender/change lines, which carry amounts but are
// not purchases.
func isTenderLine(line string) bool {
	folded := keywordFold(line)
	return strings.Contains(folded, "CHANGE") || strings.Contains(folded, "TENDER")
}

// extractDate takes the first substring matching any date pattern, trying
// the most specific patterns first.
func extractDate(lines []string, er *models.ExtractedReceipt) {
	for i, dp := range datePatterns {
		for _, line := range lines {
			m := dp.re.FindString(line)
			if m == "" {
				continue
			}
			parsed, err := time.Parse(dp.layout, m)
			if err != nil {
				continue
			}
			conf := confDateBase - float64(i)*confDateStep
			er.Date = models.NewField(parsed, conf, models.SourceGeneric)
			return
		}
	}
}

// extractPayment matches payment method tokens and a trailing masked card
// fragment.
func extractPayment(lines []string, er *models.ExtractedReceipt) {
	payment := &models.ExtractedPayment{}

	for _, line := range lines {
		if payment.Method == nil {
			if method := findPaymentMethod(line); method != "" {
				payment.Method = models.NewField(method, confPayment, models.SourceGeneric)
			}
		}
		if payment.CardLast4 == nil {
			if m := cardFragment.FindStringSubmatch(line); m != nil {
				payment.CardLast4 = models.NewField(m[1], confCardFragment, models.SourceGeneric)
			}
		}
	}

	if payment.Method != nil || payment.CardLast4 != nil {
		er.Payment = payment
	}
}

func findPaymentMethod(line string) string {
	lower := strings.ToLower(line)
	for _, pm := range paymentMethods {
		if strings.Contains(lower, pm.token) {
			return pm.method
		}
	}
	return ""
}
