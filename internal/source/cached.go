package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/metrics"
)

// RecordCache keeps by-id lookups between requests.
type RecordCache interface {
	LookupRecord(ctx context.Context, src domain.Source, id int) (*domain.RawRecord, bool, error)
	StoreRecord(ctx context.Context, src domain.Source, id int, rec *domain.RawRecord, ttl time.Duration) error
}

// Cached serves FetchByID from a RecordCache and fills the cache on a miss.
// Queries pass straight through. A broken cache degrades to the inner adapter.
type Cached struct {
	inner  Adapter
	cache  RecordCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ Adapter = (*Cached)(nil)

// NewCached wraps inner.
func NewCached(inner Adapter, cache RecordCache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("source", inner.Source().String()),
	}
}

// Source returns the wrapped adapter's source.
func (c *Cached) Source() domain.Source {
	return c.inner.Source()
}

// FetchByQuery delegates to the wrapped adapter.
func (c *Cached) FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error) {
	return c.inner.FetchByQuery(ctx, text)
}

// FetchByID returns the cached record when present.
func (c *Cached) FetchByID(ctx context.Context, id int) (*domain.RawRecord, error) {
	src := c.inner.Source()

	rec, ok, err := c.cache.LookupRecord(ctx, src, id)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("record cache lookup failed", "id", id, "error", err)
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return rec, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	rec, err = c.inner.FetchByID(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}

	if err := c.cache.StoreRecord(ctx, src, id, rec, c.ttl); err != nil {
		c.logger.Warn("record cache write failed", "id", id, "error", err)
	}
	return rec, nil
}
