package search

import (
	"regexp"
	"strings"
)

// Classifier weights (alpha, the dense-side weight in fusion).
const (
	alphaDefault   = 0.90
	alphaSemantic  = 0.97
	alphaKeyword   = 0.70
	semanticMinLen = 6 // words; above this, a query with no keyword signal is "semantic"
)

var (
	quotedSpanPattern = regexp.MustCompile(`"[^"]+"|'[^']+'`)
	digitPattern      = regexp.MustCompile(`\d`)
	// capitalizedPattern matches a capitalized token (mid-sentence, i.e. not
	// the first word), which tends to indicate a proper noun or identifier.
	capitalizedPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]*\b`)
)

// ClassifyAlpha determines the dense-side fusion weight for a query. It is
// pure and side-effect-free: a fixed set of compiled regular expressions
// evaluated against the trimmed query string, with no network or model call
// of any kind — the fusion pipeline's determinism guarantee depends on this.
func ClassifyAlpha(query string) float64 {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return alphaDefault
	}

	words := strings.Fields(trimmed)

	if isKeywordHeavy(trimmed, words) {
		return alphaKeyword
	}

	if len(words) > semanticMinLen {
		return alphaSemantic
	}

	return alphaDefault
}

// isKeywordHeavy reports whether a query shows exact-match signal: quoted
// spans, digits, or a high ratio of capitalized non-initial tokens.
func isKeywordHeavy(trimmed string, words []string) bool {
	if quotedSpanPattern.MatchString(trimmed) {
		return true
	}
	if digitPattern.MatchString(trimmed) {
		return true
	}

	if len(words) < 2 {
		return false
	}

	// Mid-sentence tokens exclude the first word, which is capitalized by
	// convention regardless of whether it's a proper noun.
	midSentence := words[1:]
	capitalized := 0
	for _, w := range midSentence {
		if capitalizedPattern.MatchString(w) {
			capitalized++
		}
	}

	ratio := float64(capitalized) / float64(len(midSentence))
	return ratio >= 0.3
}
