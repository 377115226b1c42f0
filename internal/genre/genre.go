// Package genre normalizes genre names reported by different anime sources so
// "Sci-Fi", "Science Fiction" and "sci fi" land in the same bucket.
package genre

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

// aliases maps slugs seen upstream to the slug used internally.
var aliases = map[string]string{
	"science-fiction": "sci-fi",
	"scifi":           "sci-fi",
	"sf":              "sci-fi",
	"shounen":         "shonen",
	"shoujo":          "shojo",
	"shounen-ai":      "boys-love",
	"shoujo-ai":       "girls-love",
	"yaoi":            "boys-love",
	"yuri":            "girls-love",
	"martial-art":     "martial-arts",
	"sol":             "slice-of-life",
	"superpower":      "super-power",
	"mahou-shoujo":    "mahou-shojo",
}

// Slugify converts a name to a URL-safe slug: "Slice of Life" -> "slice-of-life".
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Slug returns the canonical slug for a genre name, applying known aliases.
// Names that slugify to nothing (for example pure CJK) return "".
func Slug(name string) string {
	slug := Slugify(name)
	if canonical, ok := aliases[slug]; ok {
		return canonical
	}
	return slug
}

// Key is Slug with a fallback to the lower-cased name for names that have no
// ASCII slug, so they still compare case-insensitively.
func Key(name string) string {
	name = strings.TrimSpace(name)
	if slug := Slug(name); slug != "" {
		return slug
	}
	return strings.ToLower(name)
}

// Union merges genre lists keeping first-seen display names and order.
// Two names are the same genre when their keys match.
func Union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := Key(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}
