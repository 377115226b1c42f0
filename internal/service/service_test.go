package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/recommend"
	"github.com/anineesan/anineesan-server/internal/source/mal"
	"github.com/anineesan/anineesan-server/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func malRecord(id int, title string, score float64, genres ...string) domain.RawRecord {
	return domain.RawRecord{
		Source:    domain.SourcePrimaryMeta,
		PrimaryID: id,
		Title:     title,
		Score:     domain.Ptr(score),
		Genres:    genres,
	}
}

func anilistRecord(id int, title string, score float64) domain.RawRecord {
	return domain.RawRecord{
		Source:    domain.SourceSecondaryMeta,
		PrimaryID: id,
		NativeID:  "al-" + title,
		Title:     title,
		BannerURL: "https://img.example/banner/" + strings.ToLower(title) + ".jpg",
		Score:     domain.Ptr(score),
	}
}

// fakeFetcher answers queries and id lookups from fixed tables.
type fakeFetcher struct {
	mu      sync.Mutex
	byQuery map[string][]domain.RawRecord
	byID    map[int][]domain.RawRecord
	queries []string
}

func (f *fakeFetcher) Query(_ context.Context, text string) []domain.RawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	return f.byQuery[text]
}

func (f *fakeFetcher) ByID(_ context.Context, id int) []domain.RawRecord {
	return f.byID[id]
}

func (f *fakeFetcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeResolver resolves only the titles it knows.
type fakeResolver struct {
	streams map[string]*domain.StreamSource
}

func (r *fakeResolver) Resolve(_ context.Context, entity *domain.CanonicalEntity, episode int) (*domain.StreamSource, error) {
	for _, title := range entity.TitleCandidates() {
		if src, ok := r.streams[title]; ok {
			out := *src
			out.Episode = episode
			out.MatchedTitle = title
			return &out, nil
		}
	}
	return nil, stream.ErrResolutionNotFound
}

type fakeRanking struct {
	top      []domain.RawRecord
	seasonal []domain.RawRecord
	err      error
	// failures fails that many leading calls with err before succeeding.
	failures int
	calls    int

	gotType   mal.RankingType
	gotYear   int
	gotSeason mal.Season
}

func (f *fakeRanking) Ranking(_ context.Context, rankingType mal.RankingType, limit int) ([]domain.RawRecord, error) {
	f.gotType = rankingType
	if f.fail() {
		return nil, f.err
	}
	return f.top[:min(limit, len(f.top))], nil
}

func (f *fakeRanking) Seasonal(_ context.Context, year int, season mal.Season, limit int) ([]domain.RawRecord, error) {
	f.gotYear, f.gotSeason = year, season
	if f.fail() {
		return nil, f.err
	}
	return f.seasonal[:min(limit, len(f.seasonal))], nil
}

func (f *fakeRanking) fail() bool {
	f.calls++
	if f.err == nil {
		return false
	}
	return f.failures == 0 || f.calls <= f.failures
}

// fakeEnrich is a secondary adapter keyed by id.
type fakeEnrich struct {
	records map[int]domain.RawRecord
}

func (f *fakeEnrich) Source() domain.Source { return domain.SourceSecondaryMeta }

func (f *fakeEnrich) FetchByQuery(context.Context, string) ([]domain.RawRecord, error) {
	return nil, nil
}

func (f *fakeEnrich) FetchByID(_ context.Context, id int) (*domain.RawRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func newTestCatalog(fetcher RecordFetcher, resolver StreamResolver) *CatalogService {
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	return NewCatalogService(fetcher, resolver, recommend.NewRecommender(10, testLogger()), 0, testLogger())
}

func ids(entities []domain.CanonicalEntity) []int {
	out := make([]int, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}
