package service

import (
	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/genre"
)

// Preferences narrows recommendation and discovery output.
type Preferences struct {
	// PreferredGenres keeps titles sharing at least one of these genres.
	PreferredGenres []string `json:"preferred_genres,omitempty" validate:"dive,min=1,max=50"`
	// MinRating drops titles scored below it. Unscored titles never pass a
	// positive minimum.
	MinRating float64 `json:"min_rating,omitempty" validate:"gte=0,lte=10"`
	// MaxEpisodes drops longer titles. Zero means no limit; titles with an
	// unknown episode count pass.
	MaxEpisodes int `json:"max_episodes,omitempty" validate:"gte=0"`
}

// IsZero reports whether p filters nothing.
func (p *Preferences) IsZero() bool {
	return p == nil || (len(p.PreferredGenres) == 0 && p.MinRating <= 0 && p.MaxEpisodes <= 0)
}

// Allows reports whether e passes every configured filter.
func (p *Preferences) Allows(e *domain.CanonicalEntity) bool {
	if p.IsZero() {
		return true
	}
	if p.MinRating > 0 && (e.Score == nil || *e.Score < p.MinRating) {
		return false
	}
	if p.MaxEpisodes > 0 && e.Episodes != nil && *e.Episodes > p.MaxEpisodes {
		return false
	}
	if len(p.PreferredGenres) > 0 && !sharesGenre(p.PreferredGenres, e.Genres) {
		return false
	}
	return true
}

// Filter returns the entities p allows, keeping order, capped at limit when
// limit is positive.
func (p *Preferences) Filter(entities []domain.CanonicalEntity, limit int) []domain.CanonicalEntity {
	out := make([]domain.CanonicalEntity, 0, len(entities))
	for i := range entities {
		if limit > 0 && len(out) == limit {
			break
		}
		if p.Allows(&entities[i]) {
			out = append(out, entities[i])
		}
	}
	return out
}

func sharesGenre(wanted, have []string) bool {
	keys := make(map[string]struct{}, len(wanted))
	for _, g := range wanted {
		keys[genre.Key(g)] = struct{}{}
	}
	for _, g := range have {
		if _, ok := keys[genre.Key(g)]; ok {
			return true
		}
	}
	return false
}
