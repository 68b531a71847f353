package assemble_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts/internal/assemble"
	"receipts/pkg/models"
)

func extractedReceipt() *models.ExtractedReceipt {
	return &models.ExtractedReceipt{
		Store: models.NewField("SUPERMART", 0.9, models.SourceTemplate),
		Items: []models.ExtractedItem{
			{Name: "Milk", Quantity: 2, UnitPrice: 1.75, Price: 3.50, Confidence: 0.9},
			{Name: "Bread", Quantity: 1, Price: 2.00, Confidence: 0.7},
		},
		Totals: &models.ExtractedTotals{
			Subtotal: models.NewField(9.00, 0.8, models.SourceGeneric),
			Tax:      models.NewField(0.72, 0.8, models.SourceGeneric),
			Total:    models.NewField(9.72, 0.8, models.SourceGeneric),
		},
	}
}

func TestAssembleSuccess(t *testing.T) {
	a := assemble.New(0.8)

	resp := a.Assemble(extractedReceipt(), 0.85, nil, "raw text")
	require.True(t, resp.Success)

	receipt, ok := resp.Data.(*models.Receipt)
	require.True(t, ok)
	assert.Equal(t, "SUPERMART", receipt.Store)
	require.Len(t, receipt.Items, 2)
	assert.InDelta(t, 9.72, receipt.Totals.Total, 1e-9)
	assert.InDelta(t, 0.85, receipt.Confidence, 1e-9)
	assert.Equal(t, "raw text", receipt.RawText)
	require.NotNil(t, resp.Confidence)
	assert.InDelta(t, 0.85, *resp.Confidence, 1e-9)
	assert.Empty(t, resp.Errors)
}

func TestAssembleRecomputesMissingTotals(t *testing.T) {
	a := assemble.New(0.8)

	er := extractedReceipt()
	er.Totals = nil
	resp := a.Assemble(er, 0.85, nil, "")

	require.True(t, resp.Success)
	receipt := resp.Data.(*models.Receipt)
	assert.InDelta(t, 5.50, receipt.Totals.Subtotal, 1e-9)
	assert.InDelta(t, 5.50, receipt.Totals.Total, 1e-9)
	assert.Zero(t, receipt.Totals.Tax)
	// Recomputation penalizes confidence and records a warning.
	assert.InDelta(t, 0.85*0.8, receipt.Confidence, 1e-9)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "recomputed")
}

func TestAssembleFailsWithoutMandatoryFields(t *testing.T) {
	a := assemble.New(0.8)

	resp := a.Assemble(&models.ExtractedReceipt{}, 0, nil, "garbled")
	require.False(t, resp.Success)
	require.Len(t, resp.Errors, 2)
	assert.Contains(t, resp.Errors[0], "items")
	assert.Contains(t, resp.Errors[1], "total")
	assert.Equal(t, "garbled", resp.RawText)

	// The partial extraction is still returned.
	_, ok := resp.Data.(*models.ExtractedReceipt)
	assert.True(t, ok)
}

func TestAssembleFailsWithTotalButNoItems(t *testing.T) {
	a := assemble.New(0.8)

	er := &models.ExtractedReceipt{
		Totals: &models.ExtractedTotals{
			Total: models.NewField(5.00, 0.8, models.SourceGeneric),
		},
	}
	resp := a.Assemble(er, 0.4, nil, "")
	require.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "items")
}

func TestAssembleFailsWithNonPositiveTotal(t *testing.T) {
	a := assemble.New(0.8)

	er := extractedReceipt()
	er.Totals.Total = models.NewField(0.0, 0.8, models.SourceGeneric)
	resp := a.Assemble(er, 0.5, nil, "")
	require.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "total")
}

func TestAssembleFillsSafeDefaults(t *testing.T) {
	a := assemble.New(0.8)

	er := &models.ExtractedReceipt{
		Items: []models.ExtractedItem{
			{Name: "Mystery", Quantity: 0, Price: -1.00, Confidence: 0.3},
			{Name: "Thing", Quantity: 1, Price: 5.00, Confidence: 0.7},
		},
		Totals: &models.ExtractedTotals{
			Total: models.NewField(5.00, 0.8, models.SourceGeneric),
		},
	}
	resp := a.Assemble(er, 0.5, nil, "")
	require.True(t, resp.Success)

	receipt := resp.Data.(*models.Receipt)
	assert.Equal(t, "Unknown Store", receipt.Store)
	assert.Equal(t, 1, receipt.Items[0].Quantity)
	assert.Zero(t, receipt.Items[0].Price)
	// Subtotal defaults to the total when only a total was extracted.
	assert.InDelta(t, 5.00, receipt.Totals.Subtotal, 1e-9)
}

func TestAssembleCarriesWarningsThrough(t *testing.T) {
	a := assemble.New(0.8)

	warnings := []string{"totals do not reconcile: ..."}
	resp := a.Assemble(extractedReceipt(), 0.6, warnings, "")
	require.True(t, resp.Success)
	assert.Equal(t, warnings, resp.Errors)
}

func TestAssemblePreservesPaymentAndDate(t *testing.T) {
	a := assemble.New(0.8)

	er := extractedReceipt()
	er.Payment = &models.ExtractedPayment{
		Method:    models.NewField("VISA", 0.7, models.SourceGeneric),
		CardLast4: models.NewField("1234", 0.85, models.SourceGeneric),
	}
	resp := a.Assemble(er, 0.8, nil, "")
	require.True(t, resp.Success)

	receipt := resp.Data.(*models.Receipt)
	require.NotNil(t, receipt.Payment)
	assert.Equal(t, "VISA", receipt.Payment.Method)
	assert.Equal(t, "1234", receipt.Payment.CardLast4)
}
