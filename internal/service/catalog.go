// Package service exposes the catalog core's entry points: search, details,
// episode resolution, recommendations and discovery lists. Requests are
// validated here; upstream failures never surface as errors.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/id"
	"github.com/anineesan/anineesan-server/internal/normalize"
	"github.com/anineesan/anineesan-server/internal/recommend"
	"github.com/anineesan/anineesan-server/internal/reconcile"
	"github.com/anineesan/anineesan-server/internal/stream"
	"github.com/anineesan/anineesan-server/internal/validation"
)

// RecordFetcher gathers raw records from every source. *reconcile.Fanout
// satisfies it.
type RecordFetcher interface {
	Query(ctx context.Context, text string) []domain.RawRecord
	ByID(ctx context.Context, id int) []domain.RawRecord
}

// StreamResolver finds a playable stream for an entity. *stream.Resolver
// satisfies it.
type StreamResolver interface {
	Resolve(ctx context.Context, entity *domain.CanonicalEntity, episode int) (*domain.StreamSource, error)
}

// EpisodeResult is the answer to an EpisodeRequest. Stream is nil and
// Available false when no catalog candidate resolved.
type EpisodeResult struct {
	Entity    *domain.CanonicalEntity `json:"anime"`
	Stream    *domain.StreamSource    `json:"stream,omitempty"`
	Available bool                    `json:"available"`
}

// CatalogService answers title lookups across all sources.
type CatalogService struct {
	fetcher     RecordFetcher
	resolver    StreamResolver
	recommender *recommend.Recommender
	validator   *validation.Validator
	limit       int
	logger      *slog.Logger
}

// NewCatalogService creates a catalog service. limit caps search results when
// a request leaves it at zero.
func NewCatalogService(fetcher RecordFetcher, resolver StreamResolver, recommender *recommend.Recommender, limit int, logger *slog.Logger) *CatalogService {
	if limit <= 0 {
		limit = reconcile.DefaultSearchLimit
	}
	return &CatalogService{
		fetcher:     fetcher,
		resolver:    resolver,
		recommender: recommender,
		validator:   validation.New(),
		limit:       limit,
		logger:      logger,
	}
}

// Search queries every source for req.Query and returns reconciled entities
// in primary source order.
func (s *CatalogService) Search(ctx context.Context, req SearchRequest) ([]domain.CanonicalEntity, error) {
	req.Query = normalize.Whitespace(req.Query)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.limit
	}

	log := s.logger.With("request_id", id.Request(), "query", req.Query)
	records := s.fetcher.Query(ctx, req.Query)
	entities := reconcile.Reconcile(records, reconcile.Options{Limit: limit})
	log.Debug("search reconciled", "records", len(records), "entities", len(entities))

	return entities, nil
}

// Get returns the reconciled entity for a MyAnimeList id.
func (s *CatalogService) Get(ctx context.Context, animeID int) (*domain.CanonicalEntity, error) {
	if animeID <= 0 {
		return nil, domainerrors.Validationf("anime id must be positive, got %d", animeID)
	}

	records := s.fetcher.ByID(ctx, animeID)
	for _, e := range reconcile.Reconcile(records, reconcile.Options{}) {
		if e.ID == animeID {
			return &e, nil
		}
	}

	s.logger.Debug("no source knows this anime", "anime_id", animeID, "records", len(records))
	return nil, domainerrors.NotFoundf("anime %d not found", animeID)
}

// ResolveEpisode looks the entity up by id and runs the stream cascade for
// one episode. A title the stream catalog does not carry is not an error.
func (s *CatalogService) ResolveEpisode(ctx context.Context, req EpisodeRequest) (*EpisodeResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	entity, err := s.Get(ctx, req.AnimeID)
	if err != nil {
		return nil, err
	}

	src, ok, err := s.ResolveEntity(ctx, entity, req.Episode)
	if err != nil {
		return nil, err
	}
	return &EpisodeResult{Entity: entity, Stream: src, Available: ok}, nil
}

// ResolveEntity runs the stream cascade for an entity the caller already has.
// It reports false with a nil error when no candidate resolved.
func (s *CatalogService) ResolveEntity(ctx context.Context, entity *domain.CanonicalEntity, episode int) (*domain.StreamSource, bool, error) {
	src, err := s.resolver.Resolve(ctx, entity, episode)
	if errors.Is(err, stream.ErrResolutionNotFound) {
		s.logger.Info("no stream available", "anime_id", entity.ID, "episode", episode)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return src, true, nil
}

// Recommend returns unseen titles similar to the watch history, nearest
// first. Before the index is first built the result is empty.
func (s *CatalogService) Recommend(_ context.Context, req RecommendRequest) ([]domain.CanonicalEntity, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	n := req.Limit
	if n == 0 {
		n = DefaultRecommendations
	}
	if req.Preferences.IsZero() {
		return s.recommender.Recommend(req.History, n), nil
	}

	// Filtering happens after ranking, so rank the whole index first.
	ranked := s.recommender.Recommend(req.History, max(n, s.recommender.Index().Len()))
	return req.Preferences.Filter(ranked, n), nil
}
