package corpus

import (
	"context"
	"log/slog"
	"time"
)

// Refresher keeps the cache from going stale. It runs under a suture supervisor.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger
	name     string
}

// NewRefresher creates a refresher that checks staleness every interval.
func NewRefresher(cache *Cache, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		logger:   logger,
		name:     "corpus-refresher",
	}
}

// Serve implements suture.Service. It warm-starts from the persisted snapshot,
// refreshes if stale, then repeats the stale check on every tick. Failed
// refreshes are logged and retried on the next tick.
func (r *Refresher) Serve(ctx context.Context) error {
	if _, err := r.cache.Warm(ctx); err != nil {
		r.logger.Warn("corpus warm start failed", "error", err)
	}
	r.check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

func (r *Refresher) check(ctx context.Context) {
	ran, err := r.cache.RefreshIfStale(ctx)
	if err != nil && ctx.Err() == nil {
		r.logger.Warn("scheduled corpus refresh failed", "error", err)
		return
	}
	if ran {
		r.logger.Debug("scheduled corpus refresh done", "records", r.cache.Snapshot().Len())
	}
}

// String implements fmt.Stringer for supervisor logs.
func (r *Refresher) String() string {
	return r.name
}
