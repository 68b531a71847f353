package extract

import (
	"math"
	"strconv"
	"strings"
	"time"

	"receipts/internal/template"
	"receipts/pkg/models"
)

// Patterned extracts fields using a merchant template's specialized
// patterns, falling back to the generic heuristics for everything the
// template does not specialize. Template-derived fields carry higher
// confidence than generic ones.
type Patterned struct {
	tmpl    *template.Template
	generic *Generic
}

// NewPatterned creates the extraction strategy for one merchant template.
func NewPatterned(tmpl *template.Template) *Patterned {
	return &Patterned{tmpl: tmpl, generic: NewGeneric()}
}

// Extract runs the generic pass first, then overrides whatever the template
// knows better: canonical store name, item line pattern, date layouts.
func (p *Patterned) Extract(text models.SanitizedText, regions []models.Region) *models.ExtractedReceipt {
	er := p.generic.Extract(text, regions)

	pats := p.tmpl.Patterns
	if pats == nil {
		return er
	}

	lines := splitLines(text)

	if pats.Store != "" {
		p.overrideStore(lines, regions, er, pats.Store)
	}
	if re := pats.ItemRegexp(); re != nil {
		if items := p.itemsFromPattern(lines, regions); len(items) > 0 {
			er.Items = items
		}
	}
	if len(pats.DateLayouts) > 0 {
		p.overrideDate(lines, er, pats.DateLayouts)
	}

	return er
}

// overrideStore emits the template's canonical store name when the receipt
// actually carries it; the generic guess survives otherwise.
func (p *Patterned) overrideStore(lines []string, regions []models.Region, er *models.ExtractedReceipt, store string) {
	upper := strings.ToUpper(store)
	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), upper) {
			er.Store = models.NewField(store, blend(confTemplateStore, line, regions), models.SourceTemplate)
			return
		}
	}
}

// itemsFromPattern extracts items with the template's line regex (named
// groups qty, name, price; qty optional).
func (p *Patterned) itemsFromPattern(lines []string, regions []models.Region) []models.ExtractedItem {
	re := p.tmpl.Patterns.ItemRegexp()
	qtyIdx := re.SubexpIndex("qty")
	nameIdx := re.SubexpIndex("name")
	priceIdx := re.SubexpIndex("price")
	if nameIdx < 0 || priceIdx < 0 {
		return nil
	}

	var items []models.ExtractedItem
	for _, line := range lines {
		if isTotalsLine(line) || isTenderLine(line) || findPaymentMethod(line) != "" {
			continue
		}

		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		price, ok := parseAmount(m[priceIdx])
		if !ok || price < 0 {
			continue
		}

		name := cleanItemName(m[nameIdx])
		if name == "" || !hasLetter.MatchString(name) {
			continue
		}

		quantity := 1
		explicitQty := false
		if qtyIdx >= 0 && m[qtyIdx] != "" {
			if q, err := strconv.Atoi(m[qtyIdx]); err == nil && q >= 1 {
				quantity = q
				explicitQty = true
			}
		}

		conf := blend(confTemplateItem, line, regions)
		if !explicitQty {
			conf = models.ClampConfidence(conf * defaultQtyPenalty)
		}

		item := models.ExtractedItem{
			Name:       name,
			Quantity:   quantity,
			Price:      price,
			Confidence: conf,
			Source:     models.SourceTemplate,
		}
		if quantity > 1 {
			item.UnitPrice = math.Round(price/float64(quantity)*100) / 100
		}
		items = append(items, item)
	}

	return items
}

// overrideDate tries the template's date layouts against whole lines before
// trusting the generic date guess.
func (p *Patterned) overrideDate(lines []string, er *models.ExtractedReceipt, layouts []string) {
	for _, layout := range layouts {
		for _, line := range lines {
			parsed, err := time.Parse(layout, strings.TrimSpace(line))
			if err != nil {
				continue
			}
			er.Date = models.NewField(parsed, confTemplateDate, models.SourceTemplate)
			return
		}
	}
}
