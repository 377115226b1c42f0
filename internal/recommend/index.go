// Package recommend ranks catalog entities by content similarity to a watch
// history.
//
// Each entity becomes a vector of multi-hot genre slots followed by its score
// scaled to 0..1 and its popularity scaled by the most popular entity in the
// batch. A query averages the vectors of the watched entities and returns the
// nearest unseen entities by cosine distance.
package recommend

import (
	"math"
	"slices"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/genre"
)

// Neighbors finds the k vectors nearest to a query. Implementations receive the
// index's vectors once at build time and must be safe for concurrent use.
type Neighbors interface {
	// Nearest returns up to k row positions, nearest first.
	Nearest(query []float64, k int) []int
}

// NeighborsFactory builds a Neighbors strategy over a set of vectors.
type NeighborsFactory func(vectors [][]float64) Neighbors

// Index is an immutable nearest-neighbor index over a catalog batch.
type Index struct {
	entities  []domain.CanonicalEntity
	vectors   [][]float64
	positions map[int]int
	vocab     []string
	neighbors Neighbors
	// version is set once, before the index is published.
	version uint64
}

// Build indexes entities with exact cosine search.
func Build(entities []domain.CanonicalEntity) *Index {
	return BuildWith(entities, NewExactCosine)
}

// BuildWith indexes entities using the given neighbor strategy. Entities with
// a repeated id keep their first occurrence.
func BuildWith(entities []domain.CanonicalEntity, factory NeighborsFactory) *Index {
	idx := &Index{positions: make(map[int]int, len(entities))}
	for _, e := range entities {
		if _, dup := idx.positions[e.ID]; dup || e.ID <= 0 {
			continue
		}
		idx.positions[e.ID] = len(idx.entities)
		idx.entities = append(idx.entities, e)
	}

	idx.vocab = vocabulary(idx.entities)
	slots := make(map[string]int, len(idx.vocab))
	for i, g := range idx.vocab {
		slots[g] = i
	}

	maxPopularity := 0.0
	for _, e := range idx.entities {
		if e.Popularity != nil {
			maxPopularity = max(maxPopularity, *e.Popularity)
		}
	}

	idx.vectors = make([][]float64, len(idx.entities))
	for i, e := range idx.entities {
		idx.vectors[i] = vectorize(e, slots, maxPopularity)
	}
	idx.neighbors = factory(idx.vectors)
	return idx
}

// vocabulary returns the sorted genre slugs seen in the batch.
func vocabulary(entities []domain.CanonicalEntity) []string {
	seen := make(map[string]bool)
	var vocab []string
	for _, e := range entities {
		for _, g := range e.Genres {
			if key := genre.Key(g); key != "" && !seen[key] {
				seen[key] = true
				vocab = append(vocab, key)
			}
		}
	}
	slices.Sort(vocab)
	return vocab
}

func vectorize(e domain.CanonicalEntity, slots map[string]int, maxPopularity float64) []float64 {
	v := make([]float64, len(slots)+2)
	for _, g := range e.Genres {
		if i, ok := slots[genre.Key(g)]; ok {
			v[i] = 1
		}
	}
	v[len(slots)] = e.ScoreOrZero() / 10
	if e.Popularity != nil && maxPopularity > 0 {
		v[len(slots)+1] = *e.Popularity / maxPopularity
	}
	return v
}

// Len returns the number of indexed entities. A nil index is empty.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entities)
}

// Version returns the rebuild number the index was published under. A nil or
// unpublished index reports 0.
func (idx *Index) Version() uint64 {
	if idx == nil {
		return 0
	}
	return idx.version
}

// Vocabulary returns the genre slugs of the index, sorted.
func (idx *Index) Vocabulary() []string {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.vocab)
}

// Query returns up to n entities not in history, nearest first among the k
// neighbors of the history centroid. History entries whose id is not indexed
// are ignored. An empty history, a nil or empty index, or a history with no
// indexed entries yields an empty result.
func (idx *Index) Query(history []domain.WatchHistoryEntry, k, n int) []domain.CanonicalEntity {
	if idx.Len() == 0 || len(history) == 0 || k <= 0 || n <= 0 {
		return []domain.CanonicalEntity{}
	}

	watched := make(map[int]bool, len(history))
	centroid := make([]float64, len(idx.vocab)+2)
	matched := 0
	for _, h := range history {
		if watched[h.AnimeID] {
			continue
		}
		watched[h.AnimeID] = true
		pos, ok := idx.positions[h.AnimeID]
		if !ok {
			continue
		}
		for i, x := range idx.vectors[pos] {
			centroid[i] += x
		}
		matched++
	}
	if matched == 0 {
		return []domain.CanonicalEntity{}
	}
	for i := range centroid {
		centroid[i] /= float64(matched)
	}

	out := make([]domain.CanonicalEntity, 0, min(n, k))
	for _, pos := range idx.neighbors.Nearest(centroid, k) {
		e := idx.entities[pos]
		if watched[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything.
func CosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
