package service

import "github.com/anineesan/anineesan-server/internal/domain"

// Default and maximum result counts for requests that leave Limit at zero.
const (
	DefaultRecommendations = 10
	DefaultDiscoveryLimit  = 20
)

// SearchRequest searches every source for a title.
type SearchRequest struct {
	Query string `json:"q" validate:"required,min=1,max=200"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

// EpisodeRequest asks for a playable stream of one episode.
type EpisodeRequest struct {
	AnimeID int `json:"anime_id" validate:"gt=0"`
	Episode int `json:"episode" validate:"gte=1"`
}

// RecommendRequest asks for titles similar to a watch history.
type RecommendRequest struct {
	History     []domain.WatchHistoryEntry `json:"history" validate:"dive"`
	Limit       int                        `json:"limit" validate:"gte=0,lte=100"`
	Preferences *Preferences               `json:"preferences,omitempty"`
}

// TopRequest asks for a ranking list.
type TopRequest struct {
	Type        string       `json:"type" validate:"omitempty,oneof=all airing upcoming tv ova movie special bypopularity favorite"`
	Limit       int          `json:"limit" validate:"gte=0,lte=100"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// SeasonalRequest asks for one season's titles. Zero values mean the current season.
type SeasonalRequest struct {
	Year        int          `json:"year" validate:"omitempty,gte=1917,lte=2100"`
	Season      string       `json:"season" validate:"season"`
	Limit       int          `json:"limit" validate:"gte=0,lte=100"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// GenreRequest asks for well-rated titles in the preferred genres, skipping
// titles already watched.
type GenreRequest struct {
	Preferences Preferences `json:"preferences"`
	Watched     []int       `json:"watched,omitempty"`
	Limit       int         `json:"limit" validate:"gte=0,lte=100"`
}
