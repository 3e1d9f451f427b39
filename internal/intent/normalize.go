package intent

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases the text, strips diacritics, turns punctuation into
// spaces and collapses whitespace. The result only contains [a-z0-9_ ] and
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	// transform.Chain keeps state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = text
	}

	folded = nonWordRe.ReplaceAllString(strings.ToLower(folded), " ")
	folded = whitespaceRe.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

func normalizeAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if n := Normalize(term); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ContainsTerm reports whether the normalized term appears in the normalized
// text on word boundaries.
func ContainsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+term+" ")
}

// ContainsAny reports whether any of the normalized terms appears in text.
func ContainsAny(text string, terms []string) bool {
	for _, term := range terms {
		if ContainsTerm(text, term) {
			return true
		}
	}
	return false
}

// NormalizeTerms normalizes a keyword table once so it can be matched with
// ContainsAny.
func NormalizeTerms(terms ...string) []string {
	return normalizeAll(terms)
}
