package template

import (
	"strings"

	"github.com/rs/zerolog"

	"receipts/internal/logger"
	"receipts/pkg/models"
)

// DefaultAcceptThreshold is the minimum anchor score a template needs to be
// selected over the generic fallback.
const DefaultAcceptThreshold = 0.4

// Detection is the outcome of classifying sanitized text against the
// registry. Template is never nil; on fallback it is Generic with Score 0.
type Detection struct {
	Template       *Template
	Score          float64
	MatchedAnchors []string
}

// Detector scores sanitized text against a registry. Detection is
// deterministic and side-effect-free: identical text always yields the
// identical selection.
type Detector struct {
	registry  *Registry
	threshold float64
	log       zerolog.Logger
}

// NewDetector creates a detector over the given registry. Non-positive
// thresholds fall back to DefaultAcceptThreshold.
func NewDetector(registry *Registry, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultAcceptThreshold
	}
	return &Detector{
		registry:  registry,
		threshold: threshold,
		log:       logger.WithComponent("template-detector"),
	}
}

// Detect selects the best-scoring template, or Generic when nothing reaches
// the acceptance threshold. Score = matched anchor weight / total anchor
// weight. Ties prefer the template with the longer longest matched anchor,
// then the one registered earlier.
func (d *Detector) Detect(text models.SanitizedText) Detection {
	haystack := strings.ToUpper(string(text))

	best := Detection{Template: Generic}
	bestLongest := 0

	for _, t := range d.registry.templates {
		score, matched, longest := scoreTemplate(t, haystack)
		if score < d.threshold {
			continue
		}
		if score > best.Score || (score == best.Score && longest > bestLongest) {
			best = Detection{Template: t, Score: score, MatchedAnchors: matched}
			bestLongest = longest
		}
	}

	if best.Template == Generic {
		d.log.Debug().Msg("No template reached acceptance threshold, using generic")
	} else {
		d.log.Debug().
			Str("template", best.Template.ID).
			Float64("score", best.Score).
			Strs("anchors", best.MatchedAnchors).
			Msg("Template selected")
	}

	return best
}

func scoreTemplate(t *Template, haystack string) (score float64, matched []string, longest int) {
	total := t.TotalAnchorWeight()
	if total <= 0 {
		return 0, nil, 0
	}

	var sum float64
	for _, a := range t.Anchors {
		if strings.Contains(haystack, strings.ToUpper(a.Token)) {
			sum += a.Weight
			matched = append(matched, a.Token)
			if len(a.Token) > longest {
				longest = len(a.Token)
			}
		}
	}

	return sum / total, matched, longest
}
