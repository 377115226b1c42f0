package domain

import "time"

// RawRecord is one title as reported by a single upstream, before merging.
// Records are treated as immutable once an adapter returns them.
type RawRecord struct {
	FetchedAt time.Time `json:"fetched_at"`
	Source    Source    `json:"source"`

	// PrimaryID is the title's id in the primary metadata source's id space.
	// Zero means the upstream did not report one.
	PrimaryID int `json:"primary_id,omitempty"`
	// NativeID is the upstream's own identifier (AniList id, scrape slug).
	NativeID string `json:"native_id,omitempty"`

	Title        string `json:"title"`
	TitleEnglish string `json:"title_english,omitempty"`
	TitleNative  string `json:"title_native,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	BannerURL    string `json:"banner_url,omitempty"`
	Synopsis     string `json:"synopsis,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	Status       string `json:"status,omitempty"`

	Episodes *int `json:"episodes,omitempty"`
	// Score is on the upstream's own scale; reconciliation normalizes it.
	Score      *float64 `json:"score,omitempty"`
	Popularity *float64 `json:"popularity,omitempty"`

	Genres        []string `json:"genres,omitempty"`
	Studios       []string `json:"studios,omitempty"`
	ExternalLinks []string `json:"external_links,omitempty"`
}

// CanonicalEntity is the merged view of one title across all sources.
type CanonicalEntity struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	TitleEnglish string `json:"title_english,omitempty"`
	TitleNative  string `json:"title_native,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	BannerURL    string `json:"banner_url,omitempty"`
	Synopsis     string `json:"synopsis,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	Status       string `json:"status,omitempty"`

	Episodes   *int     `json:"episodes,omitempty"` // nil when unknown
	Score      *float64 `json:"score,omitempty"`    // 0-10
	Popularity *float64 `json:"popularity,omitempty"`

	Genres        []string `json:"genres,omitempty"`
	Studios       []string `json:"studios,omitempty"`
	ExternalLinks []string `json:"external_links,omitempty"`

	// Sources records which upstreams contributed, in priority order.
	Sources []Source `json:"sources,omitempty"`
}

// TitleCandidates returns the entity's titles in resolution order
// (title, english, native) with empty and repeated values removed.
func (e *CanonicalEntity) TitleCandidates() []string {
	candidates := make([]string, 0, 3)
	for _, t := range []string{e.Title, e.TitleEnglish, e.TitleNative} {
		if t == "" {
			continue
		}
		dup := false
		for _, c := range candidates {
			if c == t {
				dup = true
				break
			}
		}
		if !dup {
			candidates = append(candidates, t)
		}
	}
	return candidates
}

// ScoreOrZero returns the normalized score, or 0 when unknown.
func (e *CanonicalEntity) ScoreOrZero() float64 {
	if e.Score == nil {
		return 0
	}
	return *e.Score
}

// HasSource reports whether s contributed to the entity.
func (e *CanonicalEntity) HasSource(s Source) bool {
	for _, got := range e.Sources {
		if got == s {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v. Used for the optional numeric fields.
func Ptr[T any](v T) *T {
	return &v
}
