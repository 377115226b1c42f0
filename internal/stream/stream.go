// Package stream resolves canonical titles to playable episode streams on an
// independent stream catalog.
package stream

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrResolutionNotFound is returned when no title candidate produced a source.
var ErrResolutionNotFound = errors.New("stream: no stream available")

// Match is one search hit on the stream catalog. ID is only meaningful to the
// catalog session that returned it.
type Match struct {
	ID    string
	Title string
}

// Candidate is one playable source offered for an episode.
type Candidate struct {
	URL     string
	Quality string // label as reported, e.g. "1080p", "default"
	HLS     bool
}

// Catalog is a stream catalog that can be searched by title and asked for the
// sources of one episode of a match.
type Catalog interface {
	Search(ctx context.Context, query string) ([]Match, error)
	Sources(ctx context.Context, matchID string, episode int) ([]Candidate, error)
}

// ParseQuality extracts the numeric resolution from a label such as "720p" or
// "1080P HD". Only the first run of digits counts, so "720p60" is 720 and
// "480p (2)" is 480. ok is false when the label holds no digits.
func ParseQuality(label string) (int, bool) {
	start := strings.IndexFunc(label, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	digits := label[start:]
	if end := strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) }); end >= 0 {
		digits = digits[:end]
	}
	q, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return q, true
}

// BestSource returns the candidate with the highest quality. Labels without a
// number rank lowest and ties keep the earlier candidate. ok is false for an
// empty list.
func BestSource(candidates []Candidate) (best Candidate, quality int, ok bool) {
	bestQ := -1
	for _, c := range candidates {
		q, parsed := ParseQuality(c.Quality)
		if !parsed {
			q = 0
		}
		if q > bestQ {
			best, bestQ, ok = c, q, true
		}
	}
	return best, max(bestQ, 0), ok
}
