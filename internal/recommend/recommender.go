package recommend

import (
	"log/slog"
	"sync/atomic"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/metrics"
)

// DefaultNeighbors is the neighbor count used when none is configured.
const DefaultNeighbors = 10

// Recommender owns the current index. Rebuild swaps in a new index atomically;
// queries read whichever index is current without locking. The version lives
// on the index, so Index and Version always describe the same build.
type Recommender struct {
	current   atomic.Pointer[Index]
	neighbors int
	factory   NeighborsFactory
	logger    *slog.Logger
}

// NewRecommender creates a recommender with no index. k is the neighbor count
// queried around the history centroid.
func NewRecommender(k int, logger *slog.Logger) *Recommender {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &Recommender{neighbors: k, factory: NewExactCosine, logger: logger}
}

// Rebuild indexes entities and publishes the result. It returns the new
// index version.
func (r *Recommender) Rebuild(entities []domain.CanonicalEntity) uint64 {
	idx := BuildWith(entities, r.factory)
	for {
		prev := r.current.Load()
		idx.version = prev.Version() + 1
		if r.current.CompareAndSwap(prev, idx) {
			break
		}
	}
	version := idx.version

	metrics.IndexBuilds.Inc()
	metrics.IndexSize.Set(float64(idx.Len()))
	r.logger.Info("recommendation index rebuilt", "version", version, "entities", idx.Len(), "genres", len(idx.vocab))
	return version
}

// Recommend returns up to n unseen entities similar to history. Before the
// first Rebuild the result is empty.
func (r *Recommender) Recommend(history []domain.WatchHistoryEntry, n int) []domain.CanonicalEntity {
	k := max(r.neighbors, n)
	return r.current.Load().Query(history, k, n)
}

// Index returns the current index, or nil before the first Rebuild.
func (r *Recommender) Index() *Index {
	return r.current.Load()
}

// Version returns how many times the index has been rebuilt. It is the
// version of the index Index returns.
func (r *Recommender) Version() uint64 {
	return r.current.Load().Version()
}
