package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/anineesan/anineesan-server/internal/domain"
)

const batchSize = 500

// CorpusIndex is a read-only full-text index over one snapshot's records.
// All methods are safe for concurrent use.
type CorpusIndex struct {
	index bleve.Index
	size  int
}

// Build indexes records in memory. Hit positions refer to this slice.
func Build(records []domain.RawRecord) (*CorpusIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		batch := index.NewBatch()
		for pos := start; pos < end; pos++ {
			doc := FromRecord(pos, &records[pos])
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}

	return &CorpusIndex{index: index, size: len(records)}, nil
}

// Len returns the number of indexed records. A nil index is empty.
func (c *CorpusIndex) Len() int {
	if c == nil {
		return 0
	}
	return c.size
}

// DocumentCount returns the document count reported by Bleve.
func (c *CorpusIndex) DocumentCount() (uint64, error) {
	return c.index.DocCount()
}

// Close releases the index.
func (c *CorpusIndex) Close() error {
	if c == nil {
		return nil
	}
	return c.index.Close()
}
