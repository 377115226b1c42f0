package recommend

import (
	"cmp"
	"slices"
)

// ExactCosine is a brute-force Neighbors strategy. Ties are broken by row
// position so results are deterministic.
type ExactCosine struct {
	vectors [][]float64
}

// NewExactCosine creates an ExactCosine over vectors.
func NewExactCosine(vectors [][]float64) Neighbors {
	return &ExactCosine{vectors: vectors}
}

// Nearest implements Neighbors.
func (e *ExactCosine) Nearest(query []float64, k int) []int {
	type scored struct {
		pos  int
		dist float64
	}
	all := make([]scored, len(e.vectors))
	for i, v := range e.vectors {
		all[i] = scored{pos: i, dist: CosineDistance(query, v)}
	}
	slices.SortFunc(all, func(a, b scored) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	k = min(k, len(all))
	out := make([]int, k)
	for i := range k {
		out[i] = all[i].pos
	}
	return out
}
