package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anineesan/anineesan-server/internal/domain"
)

func testRecords() []domain.RawRecord {
	return []domain.RawRecord{
		{Source: domain.SourceScrape, PrimaryID: 20, Title: "Naruto", MediaType: "TV", Genres: []string{"Action", "Martial Arts"}, Score: domain.Ptr(7.9)},
		{Source: domain.SourceScrape, PrimaryID: 1735, Title: "Naruto: Shippuuden", TitleEnglish: "Naruto Shippuden", MediaType: "TV", Genres: []string{"Action"}, Score: domain.Ptr(8.2)},
		{Source: domain.SourceScrape, Title: "Boruto: Naruto Next Generations", MediaType: "TV", Genres: []string{"Action"}},
		{Source: domain.SourceScrape, PrimaryID: 1, Title: "Cowboy Bebop", MediaType: "TV", Genres: []string{"Sci-Fi"}, Synopsis: "Bounty hunters travel the solar system.", Score: domain.Ptr(8.8)},
		{Source: domain.SourceScrape, PrimaryID: 5, Title: "Cowboy Bebop: Tengoku no Tobira", MediaType: "Movie", Genres: []string{"Sci-Fi"}},
	}
}

func buildTestIndex(t *testing.T, records []domain.RawRecord) *CorpusIndex {
	t.Helper()
	idx, err := Build(records)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func positions(res *Result) []int {
	out := make([]int, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Position
	}
	return out
}

func TestBuild(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
	assert.Equal(t, 5, idx.Len())
}

func TestBuild_Empty(t *testing.T) {
	idx := buildTestIndex(t, nil)

	res, err := idx.Search(context.Background(), Params{Query: "naruto"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_TitleRanksFirst(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	res, err := idx.Search(context.Background(), Params{Query: "naruto"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{0, 1, 2}, positions(res))

	res, err = idx.Search(context.Background(), Params{Query: "cowboy bebop"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 3, res.Hits[0].Position, "the shorter exact title scores higher")
	assert.Equal(t, "Cowboy Bebop", res.Hits[0].Title)
}

func TestSearch_EnglishTitle(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	res, err := idx.Search(context.Background(), Params{Query: "shippuden"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, 1, res.Hits[0].Position)
}

func TestSearch_Fuzzy(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	res, err := idx.Search(context.Background(), Params{Query: "bebob"})
	require.NoError(t, err)
	assert.Contains(t, positions(res), 3)
}

func TestSearch_Filters(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	t.Run("media type", func(t *testing.T) {
		res, err := idx.Search(context.Background(), Params{Query: "cowboy bebop", MediaTypes: []string{"Movie"}})
		require.NoError(t, err)
		assert.Equal(t, []int{4}, positions(res))
	})

	t.Run("genre", func(t *testing.T) {
		res, err := idx.Search(context.Background(), Params{GenreSlugs: []string{"martial-arts"}})
		require.NoError(t, err)
		assert.Equal(t, []int{0}, positions(res))
	})

	t.Run("min score", func(t *testing.T) {
		res, err := idx.Search(context.Background(), Params{MinScore: 8, Limit: 10})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{1, 3}, positions(res))
	})
}

func TestSearch_Facets(t *testing.T) {
	idx := buildTestIndex(t, testRecords())

	res, err := idx.Search(context.Background(), Params{IncludeFacets: true})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, f := range res.Genres {
		counts[f.Value] = f.Count
	}
	assert.Equal(t, 3, counts["action"])
	assert.Equal(t, 2, counts["sci-fi"])
}

func TestSearch_Pagination(t *testing.T) {
	var records []domain.RawRecord
	for i := range 1200 {
		records = append(records, domain.RawRecord{Source: domain.SourceScrape, Title: fmt.Sprintf("Series %d", i)})
	}
	idx := buildTestIndex(t, records)

	res, err := idx.Search(context.Background(), Params{Query: "series", Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), res.Total)
	assert.Len(t, res.Hits, 10)
}

func TestFromRecord(t *testing.T) {
	r := testRecords()[0]
	doc := FromRecord(7, &r)

	assert.Equal(t, "7", doc.ID)
	assert.Equal(t, []string{"action", "martial-arts"}, doc.GenreSlugs)
	assert.Equal(t, 20, doc.MalID)

	m := doc.ToMap()
	assert.Equal(t, "Naruto", m["title"])
	assert.NotContains(t, m, "title_english")
}
