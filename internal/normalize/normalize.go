// Package normalize canonicalizes titles and scraped text so records from
// different upstreams can be compared.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TitleKey returns the comparison key for case-insensitive title equality.
// It applies NFKC folding (full-width Latin becomes ASCII), lower-cases and
// collapses runs of whitespace. Punctuation is kept: "Re:Zero" and "Re Zero"
// are different titles.
func TitleKey(title string) string {
	return strings.ToLower(Whitespace(norm.NFKC.String(title)))
}

// SameTitle reports whether two titles are equal under TitleKey.
// Empty titles never match.
func SameTitle(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return TitleKey(a) == TitleKey(b)
}

// Whitespace trims s and collapses every run of Unicode whitespace to one space.
func Whitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Label cleans a short scraped label such as a status or media type:
// "  Finished\n Airing :" becomes "Finished Airing".
func Label(s string) string {
	return Whitespace(strings.Trim(s, " :\t\n"))
}
