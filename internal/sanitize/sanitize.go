// Package sanitize normalizes raw OCR text before any further processing
// or persistence. Markup is stripped through an allow-list policy
// (bluemonday strict: plain text only, no tags or attributes survive),
// control characters are dropped, OCR whitespace artifacts are repaired and
// the result is length-bounded. Sanitize is a total function over any valid
// UTF-8 input and is idempotent.
package sanitize

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"receipts/pkg/models"
)

// DefaultMaxLength bounds sanitized text when no explicit limit is configured.
const DefaultMaxLength = 20000

// brokenNumber matches a decimal separator that OCR split away from its
// digits ("3 . 50", "1 ,50").
var brokenNumber = regexp.MustCompile(`(\d)[ \t]*([.,])[ \t]*(\d)`)

// Sanitizer cleans raw OCR text. Safe for concurrent use; the policy is
// never mutated after construction.
type Sanitizer struct {
	policy *bluemonday.Policy
	maxLen int
}

// New creates a Sanitizer with the given maximum output length in runes.
// Non-positive values fall back to DefaultMaxLength.
func New(maxLen int) *Sanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Sanitizer{
		policy: bluemonday.StrictPolicy(),
		maxLen: maxLen,
	}
}

// Sanitize normalizes raw text. It returns the cleaned text, zero or more
// non-fatal warnings (currently only truncation), and an error only when the
// input is not decodable UTF-8.
func (s *Sanitizer) Sanitize(raw string) (models.SanitizedText, []string, error) {
	const op = "Sanitize"

	if !utf8.ValidString(raw) {
		return "", nil, NewSanitizationError(op, ErrInvalidEncoding, "undecodable byte sequence")
	}

	text := norm.NFC.String(raw)
	text = s.stripMarkup(text)
	text = stripControl(text)
	text = brokenNumber.ReplaceAllString(text, "$1$2$3")
	text = collapseWhitespace(text)

	var warnings []string
	if runes := []rune(text); len(runes) > s.maxLen {
		text = strings.TrimSpace(string(runes[:s.maxLen]))
		warnings = append(warnings, fmt.Sprintf("text truncated to %d characters", s.maxLen))
	}

	return models.SanitizedText(text), warnings, nil
}

// stripMarkup removes tags through the allow-list policy and decodes HTML
// entities. Entity-encoded markup decodes into live markup, so the strip
// runs to a fixpoint.
func (s *Sanitizer) stripMarkup(text string) string {
	for i := 0; i < 4; i++ {
		stripped := html.UnescapeString(s.policy.Sanitize(text))
		if stripped == text {
			break
		}
		text = stripped
	}
	return text
}

// stripControl drops non-printable runes. Newlines survive as line
// structure; tabs and carriage returns become plain spaces.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t' || r == '\r':
			return ' '
		case unicode.IsGraphic(r):
			return r
		default:
			return -1
		}
	}, text)
}

// collapseWhitespace squeezes runs of horizontal whitespace, trims each
// line and drops blank lines.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
