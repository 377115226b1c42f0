package scrape

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/source"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIURLs: []string{srv.URL + "/"}, SiteURL: srv.URL}, nil, slog.New(slog.DiscardHandler))
}

func TestFetchPage_FallsBackAcrossEndpoints(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		switch r.URL.Path {
		case "/v1/anime/latest":
			w.WriteHeader(http.StatusBadGateway)
		case "/anime/latest":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(`[
				{"id": "naruto", "mal_id": 20, "title": "Naruto", "image": "https://img.example/n.jpg", "totalEpisodes": "220", "rating": 79},
				{"id": 1735, "malId": "1735", "title": {"romaji": "Naruto: Shippuuden", "english": "Naruto Shippuden"}, "episodes": 500, "rating": "8.2"},
				{"id": "untitled"},
				{"id": {"nested": true}, "title": "Bad id"}
			]`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	records, err := c.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/anime/latest", "/anime/latest"}, rec.get())
	require.Len(t, records, 2)

	naruto := records[0]
	assert.Equal(t, domain.SourceScrape, naruto.Source)
	assert.Equal(t, 20, naruto.PrimaryID)
	assert.Equal(t, "naruto", naruto.NativeID)
	require.NotNil(t, naruto.Episodes)
	assert.Equal(t, 220, *naruto.Episodes)
	require.NotNil(t, naruto.Score)
	assert.InDelta(t, 7.9, *naruto.Score, 1e-9, "percentages are scaled to 0-10")

	shippuden := records[1]
	assert.Equal(t, 1735, shippuden.PrimaryID)
	assert.Equal(t, "1735", shippuden.NativeID)
	assert.Equal(t, "Naruto Shippuden", shippuden.TitleEnglish)
	assert.InDelta(t, 8.2, *shippuden.Score, 1e-9)
}

func TestFetchPage_WrappedAndEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"data": [{"id": "bleach", "title": "Bleach"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	records, err := c.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].PrimaryID)

	records, err = c.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = c.FetchPage(context.Background(), 0)
	assert.Error(t, err)
}

func TestFetchPage_AllEndpointsDown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, source.IsTransient(err))
}

const searchPage = `<html><body>
<div class="last_episodes"><ul class="items">
  <li>
    <div class="img"><a href="/category/naruto"><img src="https://img.example/naruto.png"></a></div>
    <p class="name"><a href="/category/naruto" title="Naruto">Naruto</a></p>
    <p class="released">Released: 2002</p>
  </li>
  <li>
    <p class="name"><a href="/category/naruto-dub">  Naruto (Dub) </a></p>
  </li>
  <li><p class="released">Released: 2007</p></li>
</ul></div>
</body></html>`

func TestSearch_HTMLFallback(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		switch r.URL.Path {
		case "/search.html":
			assert.Equal(t, "naruto", r.URL.Query().Get("keyword"))
			_, _ = w.Write([]byte(searchPage))
		default:
			http.NotFound(w, r)
		}
	})

	records, err := c.Search(context.Background(), "naruto")
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/anime/search", "/anime/search", "/search.html"}, rec.get())
	require.Len(t, records, 2)

	assert.Equal(t, "Naruto", records[0].Title)
	assert.Equal(t, "naruto", records[0].NativeID)
	assert.Equal(t, "https://img.example/naruto.png", records[0].ImageURL)
	assert.Equal(t, []string{c.siteURL + "/category/naruto"}, records[0].ExternalLinks)
	assert.Equal(t, "Naruto (Dub)", records[1].Title)
}

func TestSearch_APIFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/anime/search" {
			t.Errorf("unexpected request %s", r.URL.Path)
			return
		}
		assert.Equal(t, "one piece", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results": [{"id": "one-piece", "title": "One Piece", "type": "TV"}]}`))
	})

	records, err := c.Search(context.Background(), " one piece ")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TV", records[0].MediaType)
}

func TestSearch_EverythingMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.Search(context.Background(), "nothing")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

type stubCorpus struct {
	fresh    bool
	snap     *domain.CorpusSnapshot
	hits     []domain.RawRecord
	searched int
}

func (s *stubCorpus) Fresh() bool                      { return s.fresh }
func (s *stubCorpus) Snapshot() *domain.CorpusSnapshot { return s.snap }
func (s *stubCorpus) Search(context.Context, string, int) ([]domain.RawRecord, error) {
	s.searched++
	return s.hits, nil
}

func TestAdapter_FetchByQuery(t *testing.T) {
	var live atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		live.Add(1)
		_, _ = w.Write([]byte(`[{"id": "live", "title": "Live Result"}]`))
	})

	t.Run("fresh corpus with hits", func(t *testing.T) {
		corpus := &stubCorpus{fresh: true, hits: []domain.RawRecord{{Source: domain.SourceScrape, Title: "Cached"}}}
		got, err := NewAdapter(c, corpus, 10, slog.New(slog.DiscardHandler)).FetchByQuery(context.Background(), "cached")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Cached", got[0].Title)
		assert.Zero(t, live.Load())
	})

	t.Run("stale corpus goes live", func(t *testing.T) {
		corpus := &stubCorpus{fresh: false}
		got, err := NewAdapter(c, corpus, 10, slog.New(slog.DiscardHandler)).FetchByQuery(context.Background(), "live")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Live Result", got[0].Title)
		assert.Zero(t, corpus.searched)
	})

	t.Run("fresh corpus without hits goes live", func(t *testing.T) {
		corpus := &stubCorpus{fresh: true}
		got, err := NewAdapter(c, corpus, 10, slog.New(slog.DiscardHandler)).FetchByQuery(context.Background(), "live")
		require.NoError(t, err)
		assert.Equal(t, "Live Result", got[0].Title)
		assert.Equal(t, 1, corpus.searched)
	})
}

func TestAdapter_FetchByID(t *testing.T) {
	corpus := &stubCorpus{snap: &domain.CorpusSnapshot{Records: []domain.RawRecord{
		{Source: domain.SourceScrape, Title: "Bleach"},
		{Source: domain.SourceScrape, PrimaryID: 20, Title: "Naruto"},
	}}}
	a := NewAdapter(nil, corpus, 0, slog.New(slog.DiscardHandler))

	got, err := a.FetchByID(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, "Naruto", got.Title)

	_, err = a.FetchByID(context.Background(), 21)
	assert.ErrorIs(t, err, source.ErrNotFound)

	_, err = NewAdapter(nil, nil, 0, slog.New(slog.DiscardHandler)).FetchByID(context.Background(), 20)
	assert.ErrorIs(t, err, source.ErrNotFound)
}
