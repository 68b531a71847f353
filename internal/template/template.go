// Package template holds the merchant layout registry and the detector
// that classifies sanitized receipt text against it. The registry is built
// once at process start and never mutated afterwards, so concurrent
// requests read it without synchronization.
package template

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// GenericID identifies the built-in anchor-free fallback template.
const GenericID = "generic"

// Anchor is a characteristic token used to recognize a merchant layout,
// weighted by how strongly it indicates the merchant.
type Anchor struct {
	Token  string  `yaml:"token"`
	Weight float64 `yaml:"weight"`
}

// LinePatterns carries the merchant-specific extraction patterns of a
// template. All fields are optional; extraction falls back to the generic
// heuristics for whatever a template does not specialize.
type LinePatterns struct {
	// Store is the canonical merchant name emitted for this template.
	Store string `yaml:"store,omitempty"`

	// Item is a line regex with named groups qty (optional), name and price.
	Item string `yaml:"item,omitempty"`

	// DateLayouts are Go time layouts tried before the generic date patterns.
	DateLayouts []string `yaml:"date_layouts,omitempty"`

	itemRe *regexp.Regexp
}

// ItemRegexp returns the compiled item pattern, or nil when the template
// does not specialize item lines.
func (p *LinePatterns) ItemRegexp() *regexp.Regexp {
	if p == nil {
		return nil
	}
	return p.itemRe
}

// Template is one known merchant layout: an ID, weighted anchor tokens for
// detection and optional extraction patterns.
type Template struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Anchors  []Anchor      `yaml:"anchors"`
	Patterns *LinePatterns `yaml:"patterns,omitempty"`
}

// Generic is the built-in fallback template. It has no anchors, scores 0 in
// detection and is always eligible.
var Generic = &Template{ID: GenericID, Name: "Generic"}

// TotalAnchorWeight sums the template's anchor weights.
func (t *Template) TotalAnchorWeight() float64 {
	var sum float64
	for _, a := range t.Anchors {
		sum += a.Weight
	}
	return sum
}

func (t *Template) compile() error {
	if t.Patterns == nil || t.Patterns.Item == "" {
		return nil
	}
	re, err := regexp.Compile(t.Patterns.Item)
	if err != nil {
		return fmt.Errorf("template %q: invalid item pattern: %w", t.ID, err)
	}
	t.Patterns.itemRe = re
	return nil
}

func (t *Template) validate() error {
	if t.ID == "" {
		return fmt.Errorf("template with empty id")
	}
	if t.ID == GenericID {
		return fmt.Errorf("template id %q is reserved", GenericID)
	}
	if len(t.Anchors) == 0 {
		return fmt.Errorf("template %q: at least one anchor is required", t.ID)
	}
	for _, a := range t.Anchors {
		if a.Token == "" {
			return fmt.Errorf("template %q: anchor with empty token", t.ID)
		}
		if a.Weight <= 0 {
			return fmt.Errorf("template %q: anchor %q must have positive weight", t.ID, a.Token)
		}
	}
	return nil
}

type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// LoadFile reads merchant templates from a YAML file. The result is meant
// to be passed to NewRegistry at startup; nothing is registered implicitly.
func LoadFile(path string) ([]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing templates file %s: %w", path, err)
	}

	return file.Templates, nil
}
