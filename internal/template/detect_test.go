package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipts/internal/template"
	"receipts/pkg/models"
)

func mustRegistry(t *testing.T, templates ...*template.Template) *template.Registry {
	t.Helper()
	reg, err := template.NewRegistry(templates...)
	require.NoError(t, err)
	return reg
}

func TestDetectSelectsBestScoringTemplate(t *testing.T) {
	reg := mustRegistry(t, template.Builtins()...)
	d := template.NewDetector(reg, 0.4)

	det := d.Detect("SUPERMART\n2 x Milk 3.50\nTOTAL 9.72\nTHANK YOU FOR SHOPPING")
	assert.Equal(t, "supermart", det.Template.ID)
	assert.InDelta(t, 1.0, det.Score, 1e-9)
	assert.ElementsMatch(t, []string{"SUPERMART", "THANK YOU FOR SHOPPING"}, det.MatchedAnchors)
}

func TestDetectAnchorMatchingIsCaseInsensitive(t *testing.T) {
	reg := mustRegistry(t, template.Builtins()...)
	d := template.NewDetector(reg, 0.4)

	det := d.Detect("supermart express\nMilk 3.50")
	assert.Equal(t, "supermart", det.Template.ID)
}

func TestDetectFallsBackToGenericBelowThreshold(t *testing.T) {
	reg := mustRegistry(t, template.Builtins()...)
	d := template.NewDetector(reg, 0.4)

	det := d.Detect("CORNER DELI\nSandwich 6.50\nTOTAL 6.50")
	assert.Equal(t, template.GenericID, det.Template.ID)
	assert.Zero(t, det.Score)
}

func TestDetectTieBreaksOnLongestMatchedAnchor(t *testing.T) {
	a := &template.Template{
		ID:      "short",
		Name:    "Short",
		Anchors: []template.Anchor{{Token: "MART", Weight: 1}},
	}
	b := &template.Template{
		ID:      "long",
		Name:    "Long",
		Anchors: []template.Anchor{{Token: "MARTSTORE", Weight: 1}},
	}
	reg := mustRegistry(t, a, b)
	d := template.NewDetector(reg, 0.4)

	// Both score 1.0; the longer matched anchor wins.
	det := d.Detect("MARTSTORE receipt")
	assert.Equal(t, "long", det.Template.ID)
}

func TestDetectTieBreaksOnRegistrationOrder(t *testing.T) {
	a := &template.Template{
		ID:      "first",
		Name:    "First",
		Anchors: []template.Anchor{{Token: "STORE", Weight: 1}},
	}
	b := &template.Template{
		ID:      "second",
		Name:    "Second",
		Anchors: []template.Anchor{{Token: "MARKT", Weight: 1}},
	}
	reg := mustRegistry(t, a, b)
	d := template.NewDetector(reg, 0.4)

	// Equal scores, equal longest anchor length: earlier registration wins.
	det := d.Detect("STORE MARKT receipt")
	assert.Equal(t, "first", det.Template.ID)
}

func TestDetectIsDeterministic(t *testing.T) {
	reg := mustRegistry(t, template.Builtins()...)
	d := template.NewDetector(reg, 0.4)

	text := models.SanitizedText("WALMART\nBananas 1.28\nTOTAL 1.28")
	first := d.Detect(text)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first.Template.ID, d.Detect(text).Template.ID)
	}
}

func TestRegistryRejectsBadTemplates(t *testing.T) {
	tests := []struct {
		name      string
		templates []*template.Template
	}{
		{"empty id", []*template.Template{{Name: "x", Anchors: []template.Anchor{{Token: "X", Weight: 1}}}}},
		{"reserved generic id", []*template.Template{{ID: template.GenericID, Anchors: []template.Anchor{{Token: "X", Weight: 1}}}}},
		{"no anchors", []*template.Template{{ID: "x", Name: "x"}}},
		{"zero weight anchor", []*template.Template{{ID: "x", Anchors: []template.Anchor{{Token: "X", Weight: 0}}}}},
		{"bad item regex", []*template.Template{{
			ID:       "x",
			Anchors:  []template.Anchor{{Token: "X", Weight: 1}},
			Patterns: &template.LinePatterns{Item: "("},
		}}},
		{"duplicate ids", []*template.Template{
			{ID: "x", Anchors: []template.Anchor{{Token: "X", Weight: 1}}},
			{ID: "x", Anchors: []template.Anchor{{Token: "Y", Weight: 1}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := template.NewRegistry(tt.templates...)
			assert.Error(t, err)
		})
	}
}

func TestRegistryResolvesGenericWithoutRegistration(t *testing.T) {
	reg := mustRegistry(t, template.Builtins()...)

	got, ok := reg.Get(template.GenericID)
	require.True(t, ok)
	assert.Same(t, template.Generic, got)
	assert.Equal(t, len(template.Builtins()), reg.Len())
}
