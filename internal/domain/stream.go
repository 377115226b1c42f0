package domain

import "time"

// StreamSource is a playable episode location on the stream catalog.
// It is produced per request and never cached across entities.
type StreamSource struct {
	Quality      int    `json:"quality"` // vertical resolution, 0 when unknown
	QualityLabel string `json:"quality_label"`
	URL          string `json:"url"`
	Episode      int    `json:"episode"`
	// MatchedTitle is the title candidate that resolved on the catalog.
	MatchedTitle string `json:"matched_title"`
}

// WatchHistoryEntry is one watched title supplied by the caller.
type WatchHistoryEntry struct {
	AnimeID int      `json:"anime_id" validate:"gt=0"`
	Rating  *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// CorpusSnapshot is a point-in-time scrape of the catalog site. A snapshot is
// built wholesale by one refresh and never modified after it is published.
type CorpusSnapshot struct {
	ID        string      `json:"id"`
	FetchedAt time.Time   `json:"fetched_at"`
	Pages     int         `json:"pages"`
	Records   []RawRecord `json:"records"`
}

// Age returns how old the snapshot is at now.
func (s *CorpusSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Len returns the number of records, treating a nil snapshot as empty.
func (s *CorpusSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}
