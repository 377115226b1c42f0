// Package mal implements the primary metadata adapter against the MyAnimeList
// v2 API, plus the ranking and seasonal listings and two page scrapes of the
// MyAnimeList site.
package mal

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/ratelimit"
	"github.com/anineesan/anineesan-server/internal/source"
)

const (
	defaultSearchLimit = 20
	maxLimit           = 100

	// MyAnimeList asks API clients to stay well under one request per second.
	apiRPS = 1.0
)

// Fields requested for search and listing calls.
var listFields = []string{
	"id", "title", "main_picture", "alternative_titles", "synopsis", "mean",
	"media_type", "status", "num_episodes", "num_list_users", "genres",
}

// Fields requested for single-title lookups.
var detailFields = append(append([]string{}, listFields...), "studios", "start_season", "rank", "popularity")

// Config configures the client.
type Config struct {
	BaseURL     string // e.g. https://api.myanimelist.net/v2
	SiteURL     string // e.g. https://myanimelist.net
	ClientID    string
	SearchLimit int
}

// Client is a rate-limited MyAnimeList client implementing source.Adapter.
type Client struct {
	api     *source.Fetcher
	site    *source.Fetcher
	baseURL string
	siteURL string
	limit   int
	keyed   bool
	logger  *slog.Logger
	now     func() time.Time
}

var _ source.Adapter = (*Client)(nil)

// New creates a MyAnimeList client. limiter is shared with the other adapters
// and keyed by host.
func New(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...source.FetcherOption) *Client {
	if cfg.SearchLimit <= 0 || cfg.SearchLimit > maxLimit {
		cfg.SearchLimit = defaultSearchLimit
	}

	if limiter != nil {
		if u, err := url.Parse(cfg.BaseURL); err == nil {
			limiter.SetLimit(u.Host, apiRPS)
		}
	}

	apiOpts := append([]source.FetcherOption{
		source.WithHeader("X-MAL-CLIENT-ID", cfg.ClientID),
		source.WithHeader("Accept", "application/json"),
	}, opts...)
	siteOpts := append([]source.FetcherOption{
		source.WithHeader("User-Agent", source.BrowserUserAgent),
		source.WithHeader("Accept", "text/html"),
	}, opts...)

	if cfg.ClientID == "" {
		logger.Warn("no MyAnimeList client id configured, search disabled and lookups use the site pages")
	}

	return &Client{
		api:     source.NewFetcher(limiter, logger, apiOpts...),
		site:    source.NewFetcher(limiter, logger, siteOpts...),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		limit:   cfg.SearchLimit,
		keyed:   cfg.ClientID != "",
		logger:  logger,
		now:     time.Now,
	}
}

// Source implements source.Adapter.
func (c *Client) Source() domain.Source {
	return domain.SourcePrimaryMeta
}

// get calls an API path and returns the body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.api.Get(ctx, c.baseURL+path, query, nil)
}
