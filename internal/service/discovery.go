package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/reconcile"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/source/mal"
	"github.com/anineesan/anineesan-server/internal/validation"
)

// enrichConcurrency bounds the per-title secondary lookups of one list.
const enrichConcurrency = 4

// RankingSource serves ranked and seasonal lists. *mal.Client satisfies it.
type RankingSource interface {
	Ranking(ctx context.Context, rankingType mal.RankingType, limit int) ([]domain.RawRecord, error)
	Seasonal(ctx context.Context, year int, season mal.Season, limit int) ([]domain.RawRecord, error)
}

// RecommendationFeed serves community recommendations. *mal.PageScraper
// satisfies it.
type RecommendationFeed interface {
	RecentRecommendations(ctx context.Context) ([]mal.Recommendation, error)
}

// DiscoveryOptions configures a DiscoveryService. Only Ranking is required.
type DiscoveryOptions struct {
	Ranking RankingSource
	Feed    RecommendationFeed
	// Enrich adds secondary metadata to ranked titles by id.
	Enrich source.Adapter
	// Fetcher answers the per-genre searches of ForGenres.
	Fetcher RecordFetcher
	// Retry bounds retries of the ranking and seasonal calls. The zero
	// value makes a single attempt.
	Retry  source.RetryPolicy
	Logger *slog.Logger
}

// DiscoveryService builds browse lists: top rankings, seasonal charts,
// genre picks and community recommendations.
type DiscoveryService struct {
	ranking   RankingSource
	feed      RecommendationFeed
	enrich    source.Adapter
	fetcher   RecordFetcher
	retry     source.RetryPolicy
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewDiscoveryService creates a discovery service.
func NewDiscoveryService(opts DiscoveryOptions) *DiscoveryService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DiscoveryService{
		ranking:   opts.Ranking,
		feed:      opts.Feed,
		enrich:    opts.Enrich,
		fetcher:   opts.Fetcher,
		retry:     opts.Retry,
		validator: validation.New(),
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Top returns a ranking list in rank order.
func (s *DiscoveryService) Top(ctx context.Context, req TopRequest) ([]domain.CanonicalEntity, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	limit := orDefault(req.Limit, DefaultDiscoveryLimit)

	records, err := source.Retry(ctx, s.retry, func(ctx context.Context) ([]domain.RawRecord, error) {
		return s.ranking.Ranking(ctx, mal.RankingType(req.Type), limit)
	})
	if err != nil {
		return nil, s.unavailable(ctx, err, "ranking")
	}

	entities := s.reconcileRanked(ctx, records)
	return req.Preferences.Filter(entities, limit), nil
}

// Seasonal returns one season's titles ordered by score.
func (s *DiscoveryService) Seasonal(ctx context.Context, req SeasonalRequest) ([]domain.CanonicalEntity, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	limit := orDefault(req.Limit, DefaultDiscoveryLimit)

	var season mal.Season
	if req.Season != "" {
		parsed, err := mal.ParseSeason(req.Season)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		season = parsed
	}

	records, err := source.Retry(ctx, s.retry, func(ctx context.Context) ([]domain.RawRecord, error) {
		return s.ranking.Seasonal(ctx, req.Year, season, limit)
	})
	if err != nil {
		return nil, s.unavailable(ctx, err, "seasonal chart")
	}

	entities := s.reconcileRanked(ctx, records)
	return req.Preferences.Filter(entities, limit), nil
}

// ForGenres searches each preferred genre and returns the titles that pass
// the preferences, skipping watched ids. Genres are searched concurrently;
// results keep genre order.
func (s *DiscoveryService) ForGenres(ctx context.Context, req GenreRequest) ([]domain.CanonicalEntity, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Preferences.PreferredGenres) == 0 {
		return nil, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"preferred_genres": "is required"})
	}
	if s.fetcher == nil {
		return []domain.CanonicalEntity{}, nil
	}
	limit := orDefault(req.Limit, DefaultDiscoveryLimit)

	genres := req.Preferences.PreferredGenres
	perGenre := make([][]domain.CanonicalEntity, len(genres))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range genres {
		g.Go(func() error {
			records := s.fetcher.Query(gctx, name+" genre")
			perGenre[i] = reconcile.Reconcile(records, reconcile.Options{})
			return nil
		})
	}
	_ = g.Wait()

	skip := make(map[int]struct{}, len(req.Watched))
	for _, id := range req.Watched {
		skip[id] = struct{}{}
	}

	out := make([]domain.CanonicalEntity, 0, limit)
	for _, entities := range perGenre {
		for i := range entities {
			e := &entities[i]
			if _, seen := skip[e.ID]; seen || !req.Preferences.Allows(e) {
				continue
			}
			skip[e.ID] = struct{}{}
			out = append(out, *e)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// RecentRecommendations returns the latest community recommendation pairs.
func (s *DiscoveryService) RecentRecommendations(ctx context.Context) ([]mal.Recommendation, error) {
	if s.feed == nil {
		return []mal.Recommendation{}, nil
	}
	recs, err := s.feed.RecentRecommendations(ctx)
	if err != nil {
		return nil, s.unavailable(ctx, err, "recommendation feed")
	}
	return recs, nil
}

// reconcileRanked merges secondary metadata into ranked records. Output keeps
// the ranking order; failed lookups just leave a title unenriched.
func (s *DiscoveryService) reconcileRanked(ctx context.Context, records []domain.RawRecord) []domain.CanonicalEntity {
	all := records
	if s.enrich != nil && len(records) > 0 {
		extra := make([]*domain.RawRecord, len(records))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(enrichConcurrency)
		for i := range records {
			animeID := records[i].PrimaryID
			if animeID <= 0 {
				continue
			}
			g.Go(func() error {
				rec, err := s.enrich.FetchByID(gctx, animeID)
				if err != nil {
					return err
				}
				extra[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.logger.Debug("enrichment cut short", "error", err)
		}

		all = make([]domain.RawRecord, 0, 2*len(records))
		all = append(all, records...)
		for _, rec := range extra {
			if rec != nil {
				all = append(all, *rec)
			}
		}
	}
	return reconcile.Reconcile(all, reconcile.Options{Limit: len(records)})
}

// unavailable converts an upstream failure on a discovery list into a
// domain error. The caller's own cancellation passes through unchanged.
func (s *DiscoveryService) unavailable(ctx context.Context, err error, what string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn("discovery upstream failed", "list", what, "error", err)
	return domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "%s unavailable", what)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
