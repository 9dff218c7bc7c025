package prefilter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for matching: Unicode NFKD decomposition, removal of
// combining marks, lowercasing, and whitespace trim. It is applied
// identically at build and query time so accented Portuguese input matches
// ASCII-folded literals ("avaliação" and "avaliacao" normalize equally).
// Normalize is idempotent.
func Normalize(text string) string {
	// A fresh transformer chain per call keeps this safe for concurrent use.
	chain := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(chain, text)
	if err != nil {
		// Transformation failures fall back to the raw text rather than
		// dropping the message; worst case some accented rules miss.
		folded = text
	}
	return strings.TrimSpace(strings.ToLower(folded))
}
