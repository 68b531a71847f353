package extract_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts/internal/extract"
	"receipts/pkg/models"
)

const sampleReceipt = `SUPERMART
2 x Milk 3.50
Bread 2.00
SUBTOTAL 9.00
TAX 0.72
TOTAL 9.72`

func TestGenericExtractsStore(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract(sampleReceipt, nil)
	require.NotNil(t, er.Store)
	assert.Equal(t, "SUPERMART", er.Store.Value)
	assert.Equal(t, models.SourceGeneric, er.Store.Source)
	assert.GreaterOrEqual(t, er.Store.Confidence, 0.0)
	assert.LessOrEqual(t, er.Store.Confidence, 1.0)
}

func TestGenericExtractsItemsInLineOrder(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract(sampleReceipt, nil)
	require.Len(t, er.Items, 2)

	milk := er.Items[0]
	assert.Equal(t, "Milk", milk.Name)
	assert.Equal(t, 2, milk.Quantity)
	assert.InDelta(t, 3.50, milk.Price, 1e-9)
	assert.InDelta(t, 1.75, milk.UnitPrice, 1e-9)

	bread := er.Items[1]
	assert.Equal(t, "Bread", bread.Name)
	assert.Equal(t, 1, bread.Quantity)
	assert.InDelta(t, 2.00, bread.Price, 1e-9)
	assert.Zero(t, bread.UnitPrice)

	// Assumed quantity carries a confidence penalty.
	assert.Less(t, bread.Confidence, milk.Confidence)
}

func TestGenericQuantityMultiplierVariants(t *testing.T) {
	g := extract.NewGeneric()

	tests := []struct {
		line     string
		quantity int
		unit     float64
	}{
		{"2 x Milk 3.50", 2, 1.75},
		{"2x Milk 3.50", 2, 1.75},
		{"3 @ Soda 4.50", 3, 1.50},
		{"4@Eggs 8.00", 4, 2.00},
	}

	for _, tt := range tests {
		er := g.Extract(models.SanitizedText(tt.line), nil)
		require.Len(t, er.Items, 1, "line %q", tt.line)
		assert.Equal(t, tt.quantity, er.Items[0].Quantity, "line %q", tt.line)
		assert.InDelta(t, tt.unit, er.Items[0].UnitPrice, 1e-9, "line %q", tt.line)
	}
}

func TestGenericExtractsTotals(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract(sampleReceipt, nil)
	require.NotNil(t, er.Totals)
	require.NotNil(t, er.Totals.Subtotal)
	require.NotNil(t, er.Totals.Tax)
	require.NotNil(t, er.Totals.Total)
	assert.InDelta(t, 9.00, er.Totals.Subtotal.Value, 1e-9)
	assert.InDelta(t, 0.72, er.Totals.Tax.Value, 1e-9)
	assert.InDelta(t, 9.72, er.Totals.Total.Value, 1e-9)
}

func TestGenericToleratesOCRNoiseInTotalsKeywords(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract("DELI\nSandwich 6.50\nT0TAL 6.50", nil)
	require.NotNil(t, er.Totals)
	require.NotNil(t, er.Totals.Total)
	assert.InDelta(t, 6.50, er.Totals.Total.Value, 1e-9)

	// A noisy keyword match scores lower than an exact one.
	exact := g.Extract("DELI\nSandwich 6.50\nTOTAL 6.50", nil)
	require.NotNil(t, exact.Totals)
	assert.Less(t, er.Totals.Total.Confidence, exact.Totals.Total.Confidence)
}

func TestGenericPairsKeywordWithFollowingLineAmount(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract("SHOP\nThing 5.00\nTOTAL\n5.00", nil)
	require.NotNil(t, er.Totals)
	require.NotNil(t, er.Totals.Total)
	assert.InDelta(t, 5.00, er.Totals.Total.Value, 1e-9)
}

func TestGenericExtractsDateMostSpecificFirst(t *testing.T) {
	g := extract.NewGeneric()

	tests := []struct {
		line string
		want time.Time
	}{
		{"Date: 2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"03/15/2024 14:22", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15.03.2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Mar 15, 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		er := g.Extract(models.SanitizedText("SHOP\n"+tt.line+"\nThing 5.00"), nil)
		require.NotNil(t, er.Date, "line %q", tt.line)
		assert.True(t, er.Date.Value.Equal(tt.want), "line %q: got %v", tt.line, er.Date.Value)
	}
}

func TestGenericExtractsPayment(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract("SHOP\nThing 5.00\nTOTAL 5.00\nVISA **** 1234", nil)
	require.NotNil(t, er.Payment)
	require.NotNil(t, er.Payment.Method)
	assert.Equal(t, "VISA", er.Payment.Method.Value)
	require.NotNil(t, er.Payment.CardLast4)
	assert.Equal(t, "1234", er.Payment.CardLast4.Value)
}

func TestGenericSkipsTenderAndPaymentLines(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract("SHOP\nThing 5.00\nTOTAL 5.00\nCASH 10.00\nCHANGE 5.00", nil)
	require.Len(t, er.Items, 1)
	assert.Equal(t, "Thing", er.Items[0].Name)
}

func TestGenericEmptyTextYieldsEmptyReceipt(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract("", nil)
	assert.Nil(t, er.Store)
	assert.Empty(t, er.Items)
	assert.Nil(t, er.Totals)
	assert.Nil(t, er.Date)
	assert.Nil(t, er.Payment)
}

func TestGenericPropagatesRegionConfidence(t *testing.T) {
	g := extract.NewGeneric()

	regions := []models.Region{
		{Text: "Bread 2.00", Confidence: 0.4},
	}
	withRegions := g.Extract("SHOP\nBread 2.00", regions)
	withoutRegions := g.Extract("SHOP\nBread 2.00", nil)

	require.Len(t, withRegions.Items, 1)
	require.Len(t, withoutRegions.Items, 1)
	// A low-confidence region drags the field confidence down.
	assert.Less(t, withRegions.Items[0].Confidence, withoutRegions.Items[0].Confidence)
}

func TestGenericAllConfidencesInRange(t *testing.T) {
	g := extract.NewGeneric()

	er := g.Extract(sampleReceipt+"\n03/15/2024\nVISA **** 1234", nil)

	check := func(c float64) {
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
	check(er.Store.Confidence)
	for _, item := range er.Items {
		check(item.Confidence)
	}
	check(er.Totals.Subtotal.Confidence)
	check(er.Totals.Tax.Confidence)
	check(er.Totals.Total.Confidence)
	check(er.Date.Confidence)
	check(er.Payment.Method.Confidence)
	check(er.Payment.CardLast4.Confidence)
}
