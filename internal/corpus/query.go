package corpus

import (
	"context"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/search"
)

// Search returns up to limit snapshot records matching text, best first.
// Before the first snapshot it returns nothing.
func (c *Cache) Search(ctx context.Context, text string, limit int) ([]domain.RawRecord, error) {
	records, _, err := c.Query(ctx, search.Params{Query: text, Limit: limit})
	return records, err
}

// Query runs params against the published index and returns the matching
// records together with the raw result (totals and facets). Hits and records
// always come from the same snapshot.
func (c *Cache) Query(ctx context.Context, params search.Params) ([]domain.RawRecord, *search.Result, error) {
	s := c.current.Load()
	if s == nil {
		return nil, &search.Result{}, nil
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	records := make([]domain.RawRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		records = append(records, s.snapshot.Records[hit.Position])
	}
	return records, res, nil
}
