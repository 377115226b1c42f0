package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/anineesan/anineesan-server/internal/ratelimit"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxBody = 5 << 20

	// BrowserUserAgent is sent to sites that reject non-browser clients.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Fetcher is the rate-limited HTTP transport shared by the adapters. It waits on
// a per-host token bucket, caps response size and classifies status codes.
type Fetcher struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	header  http.Header
	maxBody int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.http = c
		}
	}
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) FetcherOption {
	return func(f *Fetcher) {
		f.header.Set(key, value)
	}
}

// WithMaxBody caps how many bytes of a response body are read.
func WithMaxBody(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewFetcher creates a Fetcher. A nil limiter disables rate limiting.
func NewFetcher(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: limiter,
		logger:  logger,
		header:  http.Header{},
		maxBody: defaultMaxBody,
	}
	f.header.Set("User-Agent", "anineesan/1.0")
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get issues a GET request to rawURL with query merged into its query string.
func (f *Fetcher) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	return f.Do(req)
}

// PostJSON sends payload as a JSON body and returns the response body.
func (f *Fetcher) PostJSON(ctx context.Context, rawURL string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return f.Do(req)
}

// Do executes req after waiting on the limiter for its host. A 2xx response
// returns its body up to the size cap; any other status becomes a classified error.
func (f *Fetcher) Do(req *http.Request) ([]byte, error) {
	ctx := req.Context()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	for k, vs := range f.header {
		if req.Header.Get(k) == "" {
			req.Header[k] = vs
		}
	}

	f.logger.Debug("upstream request", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path)

	resp, err := f.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}

	if err := ClassifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// DecodeJSON unmarshals body into v, reporting failures as ErrParse.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return Parsef("decode json: %v", err)
	}
	return nil
}
