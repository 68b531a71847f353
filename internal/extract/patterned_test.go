package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts/internal/extract"
	"receipts/internal/template"
	"receipts/pkg/models"
)

func supermartTemplate(t *testing.T) *template.Template {
	t.Helper()
	reg, err := template.NewRegistry(template.Builtins()...)
	require.NoError(t, err)
	tmpl, ok := reg.Get("supermart")
	require.True(t, ok)
	return tmpl
}

func TestPatternedUsesCanonicalStoreName(t *testing.T) {
	p := extract.NewPatterned(supermartTemplate(t))

	er := p.Extract("SUPERMART #42\nMilk 3.50", nil)
	require.NotNil(t, er.Store)
	assert.Equal(t, "SUPERMART", er.Store.Value)
	assert.Equal(t, models.SourceTemplate, er.Store.Source)
}

func TestPatternedItemConfidenceBeatsGeneric(t *testing.T) {
	p := extract.NewPatterned(supermartTemplate(t))
	g := extract.NewGeneric()

	text := models.SanitizedText("SUPERMART\n2 x Milk 3.50\nBread 2.00\nTOTAL 5.50")
	patterned := p.Extract(text, nil)
	generic := g.Extract(text, nil)

	require.Len(t, patterned.Items, 2)
	require.Len(t, generic.Items, 2)
	for i := range patterned.Items {
		assert.Equal(t, models.SourceTemplate, patterned.Items[i].Source)
		assert.Greater(t, patterned.Items[i].Confidence, generic.Items[i].Confidence)
	}
}

func TestPatternedParsesQuantityAndUnitPrice(t *testing.T) {
	p := extract.NewPatterned(supermartTemplate(t))

	er := p.Extract("SUPERMART\n2 x Milk 3.50", nil)
	require.Len(t, er.Items, 1)
	item := er.Items[0]
	assert.Equal(t, "Milk", item.Name)
	assert.Equal(t, 2, item.Quantity)
	assert.InDelta(t, 3.50, item.Price, 1e-9)
	assert.InDelta(t, 1.75, item.UnitPrice, 1e-9)
}

func TestPatternedFallsBackToGenericItemsWhenPatternMisses(t *testing.T) {
	tmpl := &template.Template{
		ID:      "strict",
		Name:    "Strict",
		Anchors: []template.Anchor{{Token: "STRICT", Weight: 1}},
		Patterns: &template.LinePatterns{
			Item: `^(?P<name>NEVERMATCHES)\s+(?P<price>\d+\.\d{2})$`,
		},
	}
	reg, err := template.NewRegistry(tmpl)
	require.NoError(t, err)
	registered, _ := reg.Get("strict")

	p := extract.NewPatterned(registered)
	er := p.Extract("STRICT STORE\nMilk 3.50", nil)

	require.Len(t, er.Items, 1)
	assert.Equal(t, models.SourceGeneric, er.Items[0].Source)
}

func TestPatternedTemplateDateLayouts(t *testing.T) {
	tmpl := &template.Template{
		ID:      "dated",
		Name:    "Dated",
		Anchors: []template.Anchor{{Token: "DATED", Weight: 1}},
		Patterns: &template.LinePatterns{
			DateLayouts: []string{"02 Jan 2006"},
		},
	}
	reg, err := template.NewRegistry(tmpl)
	require.NoError(t, err)
	registered, _ := reg.Get("dated")

	p := extract.NewPatterned(registered)
	er := p.Extract("DATED SHOP\n15 Mar 2024\nMilk 3.50", nil)

	require.NotNil(t, er.Date)
	assert.Equal(t, models.SourceTemplate, er.Date.Source)
	assert.Equal(t, 2024, er.Date.Value.Year())
}

func TestPatternedWithoutPatternsEqualsGeneric(t *testing.T) {
	tmpl := &template.Template{
		ID:      "bare",
		Name:    "Bare",
		Anchors: []template.Anchor{{Token: "BARE", Weight: 1}},
	}
	reg, err := template.NewRegistry(tmpl)
	require.NoError(t, err)
	registered, _ := reg.Get("bare")

	p := extract.NewPatterned(registered)
	g := extract.NewGeneric()

	text := models.SanitizedText("BARE SHOP\nMilk 3.50\nTOTAL 3.50")
	assert.Equal(t, g.Extract(text, nil), p.Extract(text, nil))
}
