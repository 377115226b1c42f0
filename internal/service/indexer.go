package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/recommend"
	"github.com/anineesan/anineesan-server/internal/reconcile"
)

// ErrNothingToIndex is returned when a rebuild gathered no entities. The
// previous index stays in place.
var ErrNothingToIndex = errors.New("recommendation rebuild gathered no entities")

// SnapshotSource exposes the current corpus snapshot. *corpus.Cache satisfies it.
type SnapshotSource interface {
	Snapshot() *domain.CorpusSnapshot
}

// IndexBuilderOptions configures an IndexBuilder.
type IndexBuilderOptions struct {
	Catalog   *CatalogService
	Discovery *DiscoveryService // optional, contributes the top ranking
	Corpus    SnapshotSource    // optional
	// SeedQueries are searched on every rebuild to widen the index.
	SeedQueries []string
	TopLimit    int
	Interval    time.Duration
	Logger      *slog.Logger
}

// IndexBuilder gathers entities from discovery lists, seed searches and the
// corpus snapshot and rebuilds the recommendation index from them. It runs
// under a suture supervisor and also rebuilds on demand via Trigger.
type IndexBuilder struct {
	catalog   *CatalogService
	discovery *DiscoveryService
	corpus    SnapshotSource
	seeds     []string
	topLimit  int
	interval  time.Duration
	trigger   chan struct{}
	logger    *slog.Logger
}

// NewIndexBuilder creates an index builder.
func NewIndexBuilder(opts IndexBuilderOptions) *IndexBuilder {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &IndexBuilder{
		catalog:   opts.Catalog,
		discovery: opts.Discovery,
		corpus:    opts.Corpus,
		seeds:     opts.SeedQueries,
		topLimit:  orDefault(opts.TopLimit, 100),
		interval:  opts.Interval,
		trigger:   make(chan struct{}, 1),
		logger:    opts.Logger,
	}
}

// Trigger asks for a rebuild without waiting for it. Triggers that arrive
// while one is pending are merged.
func (b *IndexBuilder) Trigger() {
	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// Rebuild gathers entities and swaps in a new index, returning its version.
func (b *IndexBuilder) Rebuild(ctx context.Context) (uint64, error) {
	started := time.Now()
	entities := b.gather(ctx)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(entities) == 0 {
		b.logger.Warn("recommendation rebuild skipped, nothing gathered")
		return 0, ErrNothingToIndex
	}

	version := b.catalog.recommender.Rebuild(entities)
	b.logger.Debug("recommendation rebuild done", "version", version, "duration", time.Since(started))
	return version, nil
}

// gather collects entities, first source wins per id: the top ranking, then
// seed searches, then the corpus snapshot.
func (b *IndexBuilder) gather(ctx context.Context) []domain.CanonicalEntity {
	seen := make(map[int]struct{})
	var out []domain.CanonicalEntity
	add := func(entities []domain.CanonicalEntity) {
		for _, e := range entities {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}

	if b.discovery != nil {
		top, err := b.discovery.Top(ctx, TopRequest{Limit: b.topLimit})
		if err != nil {
			b.logger.Warn("top ranking unavailable for rebuild", "error", err)
		}
		add(top)
	}

	for _, q := range b.seeds {
		if ctx.Err() != nil {
			return out
		}
		found, err := b.catalog.Search(ctx, SearchRequest{Query: q, Limit: 100})
		if err != nil {
			b.logger.Warn("seed query rejected", "query", q, "error", err)
			continue
		}
		add(found)
	}

	if b.corpus != nil {
		if snap := b.corpus.Snapshot(); snap != nil {
			add(reconcile.Reconcile(snap.Records, reconcile.Options{}))
		}
	}
	return out
}

// Serve implements suture.Service. It rebuilds once at start, then on every
// tick and trigger.
func (b *IndexBuilder) Serve(ctx context.Context) error {
	b.rebuild(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.rebuild(ctx)
		case <-b.trigger:
			b.rebuild(ctx)
		}
	}
}

func (b *IndexBuilder) rebuild(ctx context.Context) {
	if _, err := b.Rebuild(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrNothingToIndex) {
		b.logger.Warn("recommendation rebuild failed", "error", err)
	}
}

// String implements fmt.Stringer for supervisor logs.
func (b *IndexBuilder) String() string {
	return "recommendation-indexer"
}

// Recommender exposes the index owner, mainly for status output.
func (b *IndexBuilder) Recommender() *recommend.Recommender {
	return b.catalog.recommender
}
