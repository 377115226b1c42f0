// Package corpus keeps a locally cached snapshot of the scraped catalog and
// its full-text index, refreshed in the background and published atomically.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/id"
	"github.com/anineesan/anineesan-server/internal/metrics"
	"github.com/anineesan/anineesan-server/internal/search"
	"github.com/anineesan/anineesan-server/internal/store"
)

// PageFetcher returns one catalog listing page, starting at 1. An empty page
// marks the end of the listing.
type PageFetcher func(ctx context.Context, page int) ([]domain.RawRecord, error)

// SnapshotStore persists the latest snapshot across restarts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *domain.CorpusSnapshot) error
	LoadSnapshot(ctx context.Context) (*domain.CorpusSnapshot, error)
}

// Refresh results, used as metric labels.
const (
	resultOK      = "ok"
	resultPartial = "partial"
	resultEmpty   = "empty"
	resultFailed  = "failed"
	resultWarm    = "warm_start"
)

// ErrEmptyListing is returned when a refresh finds no records at all.
var ErrEmptyListing = errors.New("corpus: listing returned no records")

// Options configures a Cache.
type Options struct {
	TTL            time.Duration
	MaxPages       int
	RefreshTimeout time.Duration // bounds one refresh cycle, default 2m
	Store          SnapshotStore // optional
	// OnPublish runs after every new snapshot is published.
	OnPublish func(*domain.CorpusSnapshot)
	Logger    *slog.Logger
}

// state is what readers see. Snapshot and index always belong together.
type state struct {
	snapshot *domain.CorpusSnapshot
	index    *search.CorpusIndex
}

// Cache owns the current corpus snapshot. Reads never block on a refresh.
type Cache struct {
	fetch     PageFetcher
	ttl       time.Duration
	maxPages  int
	timeout   time.Duration
	store     SnapshotStore
	onPublish func(*domain.CorpusSnapshot)
	logger    *slog.Logger
	now       func() time.Time

	current atomic.Pointer[state]
	group   singleflight.Group
}

// New creates an empty cache. Call Refresh or Warm to populate it.
func New(fetch PageFetcher, opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}
	return &Cache{
		fetch:     fetch,
		ttl:       opts.TTL,
		maxPages:  opts.MaxPages,
		timeout:   opts.RefreshTimeout,
		store:     opts.Store,
		onPublish: opts.OnPublish,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Snapshot returns the published snapshot, or nil before the first success.
func (c *Cache) Snapshot() *domain.CorpusSnapshot {
	if s := c.current.Load(); s != nil {
		return s.snapshot
	}
	return nil
}

// Fresh reports whether a snapshot exists and is younger than the TTL.
func (c *Cache) Fresh() bool {
	snap := c.Snapshot()
	return snap != nil && snap.Age(c.now()) < c.ttl
}

// Refresh fetches a new snapshot and publishes it. Concurrent callers share
// one in-flight refresh; each caller stops waiting when its own ctx ends.
// When the first page fails the previous snapshot stays published and the
// error is returned.
func (c *Cache) Refresh(ctx context.Context) (*domain.CorpusSnapshot, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		// The shared refresh must outlive any single waiter.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap, _ := res.Val.(*domain.CorpusSnapshot)
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RefreshIfStale refreshes only when the snapshot is missing or past its TTL.
// It reports whether a refresh ran.
func (c *Cache) RefreshIfStale(ctx context.Context) (bool, error) {
	if c.Fresh() {
		return false, nil
	}
	_, err := c.Refresh(ctx)
	return true, err
}

func (c *Cache) refresh(ctx context.Context) (*domain.CorpusSnapshot, error) {
	started := c.now()
	var (
		records []domain.RawRecord
		pages   int
		partial bool
	)

	for page := 1; page <= c.maxPages; page++ {
		batch, err := c.fetch(ctx, page)
		if err != nil {
			if page == 1 {
				metrics.CorpusRefreshes.WithLabelValues(resultFailed).Inc()
				c.logger.Warn("corpus refresh failed, keeping previous snapshot",
					"error", err, "previous_records", c.Snapshot().Len())
				return nil, fmt.Errorf("fetch page 1: %w", err)
			}
			c.logger.Warn("corpus page failed, publishing pages fetched so far", "page", page, "error", err)
			partial = true
			break
		}
		if len(batch) == 0 {
			break
		}
		records = append(records, batch...)
		pages++
	}

	if len(records) == 0 {
		metrics.CorpusRefreshes.WithLabelValues(resultEmpty).Inc()
		c.logger.Warn("corpus listing was empty, keeping previous snapshot")
		return nil, ErrEmptyListing
	}

	snapID, err := id.Generate(id.PrefixSnapshot)
	if err != nil {
		return nil, err
	}
	snap := &domain.CorpusSnapshot{
		ID:        snapID,
		FetchedAt: c.now(),
		Pages:     pages,
		Records:   records,
	}

	if err := c.publish(snap); err != nil {
		metrics.CorpusRefreshes.WithLabelValues(resultFailed).Inc()
		return nil, err
	}

	result := resultOK
	if partial {
		result = resultPartial
	}
	metrics.CorpusRefreshes.WithLabelValues(result).Inc()
	c.logger.Info("corpus snapshot published",
		"snapshot_id", snap.ID,
		"pages", pages,
		"records", len(records),
		"partial", partial,
		"duration", time.Since(started))

	if c.store != nil {
		if err := c.store.SaveSnapshot(ctx, snap); err != nil {
			c.logger.Warn("failed to persist corpus snapshot", "snapshot_id", snap.ID, "error", err)
		}
	}
	return snap, nil
}

// Warm publishes the last persisted snapshot when nothing is published yet.
// A stale snapshot is still published: stale beats empty. It reports whether
// a snapshot was loaded.
func (c *Cache) Warm(ctx context.Context) (bool, error) {
	if c.store == nil || c.current.Load() != nil {
		return false, nil
	}

	snap, err := c.store.LoadSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load persisted snapshot: %w", err)
	}
	if snap.Len() == 0 {
		return false, nil
	}

	st, err := newState(snap)
	if err != nil {
		return false, err
	}
	// A refresh may have published while the snapshot was loading; never
	// replace it with the older persisted one.
	if !c.current.CompareAndSwap(nil, st) {
		c.logger.Debug("corpus warm start skipped, a newer snapshot is published", "persisted_id", snap.ID)
		return false, nil
	}
	c.published(snap)
	metrics.CorpusRefreshes.WithLabelValues(resultWarm).Inc()
	c.logger.Info("corpus warm-started from cache",
		"snapshot_id", snap.ID,
		"records", snap.Len(),
		"age", snap.Age(c.now()).Round(time.Second))
	return true, nil
}

// publish indexes snap and swaps it in. The old index is left to the garbage
// collector because in-flight searches may still be reading it.
func (c *Cache) publish(snap *domain.CorpusSnapshot) error {
	st, err := newState(snap)
	if err != nil {
		return err
	}
	c.current.Store(st)
	c.published(snap)
	return nil
}

func newState(snap *domain.CorpusSnapshot) (*state, error) {
	index, err := search.Build(snap.Records)
	if err != nil {
		return nil, fmt.Errorf("index snapshot %s: %w", snap.ID, err)
	}
	return &state{snapshot: snap, index: index}, nil
}

func (c *Cache) published(snap *domain.CorpusSnapshot) {
	metrics.CorpusRecords.Set(float64(snap.Len()))
	metrics.CorpusAge.Set(float64(snap.FetchedAt.Unix()))

	if c.onPublish != nil {
		c.onPublish(snap)
	}
}
