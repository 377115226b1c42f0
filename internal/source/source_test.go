package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/metrics"
	"github.com/anineesan/anineesan-server/internal/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantNil   bool
		transient bool
		notFound  bool
	}{
		{code: http.StatusOK, wantNil: true},
		{code: http.StatusNoContent, wantNil: true},
		{code: http.StatusNotFound, notFound: true},
		{code: http.StatusGone, notFound: true},
		{code: http.StatusTooManyRequests, transient: true},
		{code: http.StatusBadGateway, transient: true},
		{code: http.StatusServiceUnavailable, transient: true},
		{code: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := ClassifyStatus(tt.code)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := Wrap("search", domain.SourceSecondaryMeta, "bleach", ErrNotFound)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "secondary search [bleach]: source: not found", err.Error())
	assert.NoError(t, Wrap("search", domain.SourceScrape, "", nil))
}

func TestFirstOf(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		var tried []string
		got, err := FirstOf(ctx, []string{"a", "b", "c"}, func(_ context.Context, ep string) (string, error) {
			tried = append(tried, ep)
			if ep == "a" {
				return "", ErrTransient
			}
			return "from " + ep, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "from b", got)
		assert.Equal(t, []string{"a", "b"}, tried)
	})

	t.Run("transient when any candidate was transient", func(t *testing.T) {
		_, err := FirstOf(ctx, []string{"a", "b"}, func(_ context.Context, ep string) (int, error) {
			if ep == "a" {
				return 0, ErrNotFound
			}
			return 0, fmt.Errorf("%w: status 503", ErrTransient)
		})
		assert.True(t, IsTransient(err))
	})

	t.Run("not found when all candidates miss", func(t *testing.T) {
		_, err := FirstOf(ctx, []string{"a", "b"}, func(context.Context, string) (int, error) {
			return 0, ErrNotFound
		})
		assert.True(t, IsNotFound(err))
		assert.False(t, IsTransient(err))
	})

	t.Run("parse failures are isolated", func(t *testing.T) {
		got, err := FirstOf(ctx, []string{"a", "b"}, func(_ context.Context, ep string) (int, error) {
			if ep == "a" {
				return 0, Parsef("missing data")
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})

	t.Run("no endpoints", func(t *testing.T) {
		_, err := FirstOf(ctx, nil, func(context.Context, string) (int, error) { return 1, nil })
		assert.Error(t, err)
	})

	t.Run("stops when context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := FirstOf(cctx, []string{"a", "b"}, func(context.Context, string) (int, error) {
			calls++
			cancel()
			return 0, ErrTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{Retries: 2, Backoff: time.Millisecond}

	t.Run("retries transient up to the bound", func(t *testing.T) {
		calls := 0
		_, err := Retry(ctx, policy, func(context.Context) (int, error) {
			calls++
			return 0, ErrTransient
		})
		assert.ErrorIs(t, err, ErrTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		calls := 0
		got, err := Retry(ctx, policy, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", ErrTransient
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("terminal errors are not retried", func(t *testing.T) {
		for _, terminal := range []error{ErrNotFound, Parsef("bad html")} {
			calls := 0
			_, err := Retry(ctx, policy, func(context.Context) (int, error) {
				calls++
				return 0, terminal
			})
			assert.Error(t, err)
			assert.Equal(t, 1, calls)
		}
	})

	t.Run("retry hook sees attempts", func(t *testing.T) {
		var attempts []int
		p := policy
		p.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }
		_, _ = Retry(ctx, p, func(context.Context) (int, error) { return 0, ErrTransient })
		assert.Equal(t, []int{1, 2}, attempts)
	})

	t.Run("cancelled backoff returns", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		slow := RetryPolicy{Retries: 5, Backoff: time.Hour}
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := Retry(cctx, slow, func(context.Context) (int, error) {
			calls++
			return 0, ErrTransient
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestFetcher_Get(t *testing.T) {
	var gotUA, gotQuery, gotClient string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotClient = r.Header.Get("X-MAL-CLIENT-ID")
		gotQuery = r.URL.RawQuery
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	limiter := ratelimit.New(1000, 10)
	defer limiter.Stop()
	f := NewFetcher(limiter, testLogger(), WithHTTPClient(server.Client()), WithHeader("X-MAL-CLIENT-ID", "abc"))

	body, err := f.Get(context.Background(), server.URL+"/ok?fields=id", map[string][]string{"q": {"gintama"}}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "anineesan/1.0", gotUA)
	assert.Equal(t, "abc", gotClient)
	assert.Equal(t, "fields=id&q=gintama", gotQuery)

	_, err = f.Get(context.Background(), server.URL+"/missing", nil, nil)
	assert.True(t, IsNotFound(err))

	_, err = f.Get(context.Background(), server.URL+"/down", nil, nil)
	assert.True(t, IsTransient(err))
}

func TestFetcher_ConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := NewFetcher(nil, testLogger())
	_, err := f.Get(context.Background(), url, nil, nil)
	assert.True(t, IsTransient(err))
}

func TestFetcher_MaxBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	f := NewFetcher(nil, testLogger(), WithHTTPClient(server.Client()), WithMaxBody(4))
	body, err := f.Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))
}

func TestDecodeJSON_ParseError(t *testing.T) {
	var v struct{ Data []int }
	err := DecodeJSON([]byte("<html>"), &v)
	assert.True(t, IsParse(err))
}

// stubAdapter returns canned results and counts calls.
type stubAdapter struct {
	src     domain.Source
	calls   atomic.Int32
	records []domain.RawRecord
	record  *domain.RawRecord
	err     func(call int32) error
	delay   time.Duration
}

func (s *stubAdapter) Source() domain.Source { return s.src }

func (s *stubAdapter) FetchByQuery(ctx context.Context, _ string) ([]domain.RawRecord, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		if err := s.err(n); err != nil {
			return nil, err
		}
	}
	return s.records, nil
}

func (s *stubAdapter) FetchByID(ctx context.Context, _ int) (*domain.RawRecord, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		if err := s.err(n); err != nil {
			return nil, err
		}
	}
	return s.record, nil
}

func resilientOptions() Options {
	return Options{
		Timeout: 50 * time.Millisecond,
		Retry:   RetryPolicy{Retries: 2, Backoff: time.Millisecond},
		Logger:  testLogger(),
	}
}

func TestResilient_AbsorbsFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int32
	}{
		{name: "not found", err: ErrNotFound, wantCalls: 1},
		{name: "parse", err: Parsef("no cards"), wantCalls: 1},
		{name: "transient exhausts retries", err: ErrTransient, wantCalls: 3},
		{name: "unexpected status", err: ClassifyStatus(http.StatusForbidden), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAdapter{src: domain.SourceScrape, err: func(int32) error { return tt.err }}
			r := NewResilient(stub, resilientOptions())

			got, err := r.FetchByQuery(context.Background(), "x")
			assert.NoError(t, err)
			assert.Empty(t, got)
			assert.Equal(t, tt.wantCalls, stub.calls.Load())
		})
	}
}

func TestResilient_RecoversAfterTransient(t *testing.T) {
	stub := &stubAdapter{
		src:     domain.SourcePrimaryMeta,
		records: []domain.RawRecord{{Source: domain.SourcePrimaryMeta, PrimaryID: 1, Title: "Cowboy Bebop"}},
		err: func(call int32) error {
			if call == 1 {
				return ErrTransient
			}
			return nil
		},
	}
	before := testutil.ToFloat64(metrics.AdapterRetries.WithLabelValues("primary"))

	r := NewResilient(stub, resilientOptions())
	got, err := r.FetchByQuery(context.Background(), "bebop")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cowboy Bebop", got[0].Title)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AdapterRetries.WithLabelValues("primary")))
}

func TestResilient_PerAttemptTimeoutIsRetried(t *testing.T) {
	stub := &stubAdapter{src: domain.SourceSecondaryMeta, delay: time.Second}
	opts := resilientOptions()
	opts.Timeout = 5 * time.Millisecond

	got, err := NewResilient(stub, opts).FetchByQuery(context.Background(), "slow")
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestResilient_ReturnsCallerContextError(t *testing.T) {
	stub := &stubAdapter{src: domain.SourceSecondaryMeta, delay: time.Second}
	opts := resilientOptions()
	opts.Timeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewResilient(stub, opts).FetchByQuery(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResilient_BreakerOpens(t *testing.T) {
	stub := &stubAdapter{src: domain.SourceScrape, err: func(int32) error { return ErrTransient }}
	opts := resilientOptions()
	opts.Retry = RetryPolicy{}
	opts.Breaker = BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}
	r := NewResilient(stub, opts)

	for range 5 {
		_, err := r.FetchByQuery(context.Background(), "x")
		require.NoError(t, err)
	}
	// Two calls trip the breaker; the rest are short-circuited.
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestResilient_BreakerIgnoresNotFound(t *testing.T) {
	stub := &stubAdapter{src: domain.SourceScrape, err: func(int32) error { return ErrNotFound }}
	opts := resilientOptions()
	opts.Breaker = BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}
	r := NewResilient(stub, opts)

	for range 3 {
		rec, err := r.FetchByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestIsTransient_WrappedDeadline(t *testing.T) {
	err := fmt.Errorf("search: %w", context.DeadlineExceeded)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))
}
