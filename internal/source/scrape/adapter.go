package scrape

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/source"
)

// Corpus is the read side of the corpus cache the adapter answers from.
type Corpus interface {
	Fresh() bool
	Snapshot() *domain.CorpusSnapshot
	Search(ctx context.Context, text string, limit int) ([]domain.RawRecord, error)
}

// Adapter serves the Scrape source. Queries are answered from a fresh corpus
// snapshot when it has hits and from a live search otherwise.
type Adapter struct {
	client *Client
	corpus Corpus
	limit  int
	logger *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter creates the Scrape adapter. corpus may be nil.
func NewAdapter(client *Client, corpus Corpus, limit int, logger *slog.Logger) *Adapter {
	if limit <= 0 {
		limit = 20
	}
	return &Adapter{client: client, corpus: corpus, limit: limit, logger: logger}
}

// Source implements source.Adapter.
func (a *Adapter) Source() domain.Source {
	return domain.SourceScrape
}

// FetchByQuery implements source.Adapter.
func (a *Adapter) FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error) {
	if a.corpus != nil && a.corpus.Fresh() {
		hits, err := a.corpus.Search(ctx, text, a.limit)
		switch {
		case err != nil:
			a.logger.Debug("corpus search failed, searching live", "query", text, "error", err)
		case len(hits) > 0:
			return hits, nil
		}
	}
	return a.client.Search(ctx, text)
}

// FetchByID returns the snapshot record carrying the given MyAnimeList id.
// The site has no id lookup of its own.
func (a *Adapter) FetchByID(_ context.Context, id int) (*domain.RawRecord, error) {
	if a.corpus != nil && id > 0 {
		if snap := a.corpus.Snapshot(); snap != nil {
			for i := range snap.Records {
				if snap.Records[i].PrimaryID == id {
					record := snap.Records[i]
					return &record, nil
				}
			}
		}
	}
	return nil, source.Wrap("details", domain.SourceScrape, strconv.Itoa(id), source.ErrNotFound)
}
