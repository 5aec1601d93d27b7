package tool

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"canvas-copilot/internal/domain"
)

// textPolicy strips every HTML element and attribute from text content.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from user-facing shape text and caps its
// length. The cap applies after stripping so the visible text budget is
// what gets enforced. Truncation lands on a rune boundary so a multi-byte
// character straddling the cap is dropped whole rather than split.
func SanitizeText(s string) string {
	s = textPolicy.Sanitize(s)
	s = strings.TrimSpace(s)
	if len(s) > domain.MaxTextLength {
		cut := domain.MaxTextLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
