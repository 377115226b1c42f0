package stream

import (
	"context"
	"log/slog"

	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/metrics"
)

// Outcome labels for metrics.ResolutionAttempts.
const (
	attemptResolved   = "resolved"
	attemptNoMatch    = "no_match"
	attemptNoSources  = "no_sources"
	attemptSearchErr  = "search_error"
	attemptSourcesErr = "sources_error"
)

// Resolver runs the title cascade against one catalog.
type Resolver struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(catalog Catalog, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve finds a stream for one episode of entity. Title candidates are tried
// in order (title, english, native) and the first one that yields sources wins;
// failures of a single candidate are logged and the next one is tried.
//
// An episode below 1 is rejected before any catalog call. When every candidate
// is exhausted the error is ErrResolutionNotFound.
func (r *Resolver) Resolve(ctx context.Context, entity *domain.CanonicalEntity, episode int) (*domain.StreamSource, error) {
	if episode < 1 {
		return nil, domainerrors.Validationf("episode must be at least 1, got %d", episode)
	}
	if entity == nil {
		return nil, domainerrors.Validation("entity is required")
	}

	for _, title := range entity.TitleCandidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := r.logger.With("anime_id", entity.ID, "candidate", title, "episode", episode)

		matches, err := r.catalog.Search(ctx, title)
		if err != nil {
			metrics.ResolutionAttempts.WithLabelValues(attemptSearchErr).Inc()
			log.Debug("stream search failed", "error", err)
			continue
		}
		if len(matches) == 0 {
			metrics.ResolutionAttempts.WithLabelValues(attemptNoMatch).Inc()
			continue
		}

		match := matches[0]
		candidates, err := r.catalog.Sources(ctx, match.ID, episode)
		if err != nil {
			metrics.ResolutionAttempts.WithLabelValues(attemptSourcesErr).Inc()
			log.Debug("stream sources failed", "match", match.ID, "error", err)
			continue
		}

		best, quality, ok := BestSource(candidates)
		if !ok {
			metrics.ResolutionAttempts.WithLabelValues(attemptNoSources).Inc()
			continue
		}

		metrics.ResolutionAttempts.WithLabelValues(attemptResolved).Inc()
		log.Debug("stream resolved", "match", match.ID, "quality", best.Quality)
		return &domain.StreamSource{
			Quality:      quality,
			QualityLabel: best.Quality,
			URL:          best.URL,
			Episode:      episode,
			MatchedTitle: title,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrResolutionNotFound
}
