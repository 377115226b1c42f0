package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/search"
	"github.com/anineesan/anineesan-server/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func page(titles ...string) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(titles))
	for _, t := range titles {
		out = append(out, domain.RawRecord{Source: domain.SourceScrape, Title: t})
	}
	return out
}

// listing serves canned pages and records which pages were requested.
type listing struct {
	mu    sync.Mutex
	pages map[int][]domain.RawRecord
	fail  map[int]error
	calls []int
}

func (l *listing) fetch(_ context.Context, n int) ([]domain.RawRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, n)
	if err := l.fail[n]; err != nil {
		return nil, err
	}
	return l.pages[n], nil
}

func (l *listing) requested() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.calls...)
}

func (l *listing) setFail(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail == nil {
		l.fail = map[int]error{}
	}
	l.fail[n] = err
}

func newTestCache(l *listing, opts Options) *Cache {
	opts.Logger = testLogger()
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = 5
	}
	return New(l.fetch, opts)
}

func titles(records []domain.RawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestCache_EmptyBeforeFirstRefresh(t *testing.T) {
	c := newTestCache(&listing{}, Options{})

	assert.Nil(t, c.Snapshot())
	assert.False(t, c.Fresh())

	hits, err := c.Search(context.Background(), "naruto", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCache_RefreshStopsAtEmptyPage(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{
		1: page("Frieren", "Dandadan"),
		2: page("Kaiju No. 8"),
		4: page("never reached"),
	}}
	c := newTestCache(l, Options{})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, l.requested())
	assert.Equal(t, 2, snap.Pages)
	assert.Equal(t, []string{"Frieren", "Dandadan", "Kaiju No. 8"}, titles(snap.Records))
	assert.Regexp(t, `^snap-`, snap.ID)
	assert.Same(t, snap, c.Snapshot())
	assert.True(t, c.Fresh())
}

func TestCache_RefreshHonorsMaxPages(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{}}
	for i := 1; i <= 10; i++ {
		l.pages[i] = page(fmt.Sprintf("Title %d", i))
	}
	c := newTestCache(l, Options{MaxPages: 3})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, l.requested())
	assert.Equal(t, 3, snap.Len())
}

func TestCache_FirstPageFailureKeepsPreviousSnapshot(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{1: page("Mushishi")}}
	c := newTestCache(l, Options{})

	before, err := c.Refresh(context.Background())
	require.NoError(t, err)

	l.setFail(1, errors.New("upstream down"))
	_, err = c.Refresh(context.Background())
	require.Error(t, err)

	assert.Same(t, before, c.Snapshot())
	hits, err := c.Search(context.Background(), "mushishi", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mushishi"}, titles(hits))
}

func TestCache_LaterPageFailurePublishesPartial(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{
		1: page("Frieren"),
		2: page("Dandadan"),
		3: page("Kaiju No. 8"),
	}}
	l.setFail(3, errors.New("timeout"))
	c := newTestCache(l, Options{})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Pages)
	assert.Equal(t, []string{"Frieren", "Dandadan"}, titles(snap.Records))
}

func TestCache_EmptyListingKeepsPreviousSnapshot(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{1: page("Ping Pong")}}
	c := newTestCache(l, Options{})

	before, err := c.Refresh(context.Background())
	require.NoError(t, err)

	l.mu.Lock()
	l.pages = map[int][]domain.RawRecord{}
	l.mu.Unlock()

	_, err = c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrEmptyListing)
	assert.Same(t, before, c.Snapshot())
}

func TestCache_ConcurrentRefreshesCollapse(t *testing.T) {
	var (
		firstPage atomic.Int32
		started   = make(chan struct{})
		release   = make(chan struct{})
	)
	fetch := func(ctx context.Context, n int) ([]domain.RawRecord, error) {
		if n != 1 {
			return nil, nil
		}
		if firstPage.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return page("Monster"), nil
	}
	c := New(fetch, Options{TTL: time.Hour, MaxPages: 3, Logger: testLogger()})

	const callers = 8
	results := make([]*domain.CorpusSnapshot, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			snap, err := c.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		})
	}

	<-started
	// Give the remaining callers time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), firstPage.Load())
	for _, snap := range results {
		assert.Same(t, results[0], snap)
	}
}

func TestCache_WaiterCancellationDoesNotAbortRefresh(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, n int) ([]domain.RawRecord, error) {
		if n != 1 {
			return nil, nil
		}
		<-release
		return page("Haikyu!!"), nil
	}
	c := New(fetch, Options{TTL: time.Hour, MaxPages: 2, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx)
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return c.Snapshot().Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCache_RefreshIfStale(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{1: page("Cowboy Bebop")}}
	c := newTestCache(l, Options{TTL: time.Hour, MaxPages: 1})

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ran, err := c.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	now = now.Add(30 * time.Minute)
	ran, err = c.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Len(t, l.requested(), 1)

	now = now.Add(time.Hour)
	assert.False(t, c.Fresh())
	ran, err = c.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, l.requested(), 2)
}

func TestCache_SearchUsesPublishedIndex(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{1: {
		{Source: domain.SourceScrape, Title: "Naruto", Genres: []string{"Action"}, MediaType: "TV"},
		{Source: domain.SourceScrape, Title: "Naruto: Shippuden", Genres: []string{"Action"}, MediaType: "TV"},
		{Source: domain.SourceScrape, Title: "Aria the Animation", Genres: []string{"Slice of Life"}, MediaType: "TV"},
	}}}
	c := newTestCache(l, Options{MaxPages: 1})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	hits, err := c.Search(context.Background(), "naruto", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Naruto", "Naruto: Shippuden"}, titles(hits))

	records, res, err := c.Query(context.Background(), search.Params{Query: "aria", IncludeFacets: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Aria the Animation", records[0].Title)
	assert.Equal(t, uint64(1), res.Total)
}

func TestCache_PersistsAndWarmStarts(t *testing.T) {
	db, err := store.Open("", testLogger())
	require.NoError(t, err)
	defer db.Close()

	l := &listing{pages: map[int][]domain.RawRecord{1: page("Vinland Saga")}}
	first := newTestCache(l, Options{Store: db, MaxPages: 1})
	published, err := first.Refresh(context.Background())
	require.NoError(t, err)

	var notified []string
	second := newTestCache(&listing{}, Options{
		Store:     db,
		OnPublish: func(s *domain.CorpusSnapshot) { notified = append(notified, s.ID) },
	})
	loaded, err := second.Warm(context.Background())
	require.NoError(t, err)
	require.True(t, loaded)

	assert.Equal(t, published.ID, second.Snapshot().ID)
	assert.Equal(t, []string{published.ID}, notified)

	hits, err := second.Search(context.Background(), "vinland", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// A published snapshot is never replaced by a warm start.
	loaded, err = second.Warm(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestCache_WarmWithoutPersistedSnapshot(t *testing.T) {
	db, err := store.Open("", testLogger())
	require.NoError(t, err)
	defer db.Close()

	c := newTestCache(&listing{}, Options{Store: db})
	loaded, err := c.Warm(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Nil(t, c.Snapshot())
}

// slowStore hands out a persisted snapshot only after release is closed.
type slowStore struct {
	persisted *domain.CorpusSnapshot
	loading   chan struct{}
	release   chan struct{}
}

func (s *slowStore) SaveSnapshot(context.Context, *domain.CorpusSnapshot) error { return nil }

func (s *slowStore) LoadSnapshot(ctx context.Context) (*domain.CorpusSnapshot, error) {
	close(s.loading)
	select {
	case <-s.release:
		return s.persisted, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCache_WarmNeverReplacesNewerRefresh(t *testing.T) {
	slow := &slowStore{
		persisted: &domain.CorpusSnapshot{
			ID:        "snap_old",
			FetchedAt: time.Now().Add(-48 * time.Hour),
			Pages:     1,
			Records:   page("Old Listing"),
		},
		loading: make(chan struct{}),
		release: make(chan struct{}),
	}

	var mu sync.Mutex
	var notified []string
	l := &listing{pages: map[int][]domain.RawRecord{1: page("Frieren")}}
	c := newTestCache(l, Options{
		Store:    slow,
		MaxPages: 1,
		OnPublish: func(s *domain.CorpusSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, s.ID)
		},
	})

	type warmResult struct {
		loaded bool
		err    error
	}
	done := make(chan warmResult, 1)
	go func() {
		loaded, err := c.Warm(context.Background())
		done <- warmResult{loaded, err}
	}()

	<-slow.loading
	fresh, err := c.Refresh(context.Background())
	require.NoError(t, err)
	close(slow.release)

	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.loaded)
	assert.Equal(t, fresh.ID, c.Snapshot().ID)
	assert.Equal(t, []string{"Frieren"}, titles(c.Snapshot().Records))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{fresh.ID}, notified)
}

func TestRefresher_ServeRefreshesUntilCancelled(t *testing.T) {
	l := &listing{pages: map[int][]domain.RawRecord{1: page("Mob Psycho 100")}}
	c := newTestCache(l, Options{MaxPages: 1})
	r := NewRefresher(c, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	assert.Eventually(t, func() bool { return c.Snapshot() != nil }, time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, "corpus-refresher", r.String())
}
