// Package gogo is a stream catalog client for a consumet-style gogoanime API.
package gogo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/anineesan/anineesan-server/internal/ratelimit"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/stream"
)

const defaultServer = "gogocdn"

// Config configures the client.
type Config struct {
	BaseURL string // e.g. https://api.consumet.org/anime/gogoanime
	Server  string
}

// Client implements stream.Catalog.
type Client struct {
	fetcher *source.Fetcher
	baseURL string
	server  string
}

var _ stream.Catalog = (*Client)(nil)

// New creates a catalog client.
func New(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...source.FetcherOption) *Client {
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	return &Client{
		fetcher: source.NewFetcher(limiter, logger, opts...),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		server:  cfg.Server,
	}
}

type searchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Search implements stream.Catalog. The API answers with either
// {"results": [...]} or a bare array.
func (c *Client) Search(ctx context.Context, query string) ([]stream.Match, error) {
	body, err := c.fetcher.Get(ctx, c.baseURL+"/search", url.Values{"q": {query}}, nil)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var results []searchResult
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = source.DecodeJSON(trimmed, &results)
	} else {
		var wrapped struct {
			Results []searchResult `json:"results"`
		}
		err = source.DecodeJSON(body, &wrapped)
		results = wrapped.Results
	}
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	matches := make([]stream.Match, 0, len(results))
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		matches = append(matches, stream.Match{ID: r.ID, Title: r.Title})
	}
	return matches, nil
}

type watchResponse struct {
	Sources []struct {
		URL     string `json:"url"`
		Quality string `json:"quality"`
		IsM3U8  bool   `json:"isM3U8"`
	} `json:"sources"`
}

// Sources implements stream.Catalog.
func (c *Client) Sources(ctx context.Context, matchID string, episode int) ([]stream.Candidate, error) {
	episodeID := fmt.Sprintf("%s-episode-%d", matchID, episode)
	query := url.Values{"id": {episodeID}, "server": {c.server}}

	body, err := c.fetcher.Get(ctx, c.baseURL+"/watch", query, nil)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", episodeID, err)
	}

	var resp watchResponse
	if err := source.DecodeJSON(body, &resp); err != nil {
		return nil, fmt.Errorf("watch %s: %w", episodeID, err)
	}

	candidates := make([]stream.Candidate, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		if s.URL == "" {
			continue
		}
		candidates = append(candidates, stream.Candidate{URL: s.URL, Quality: s.Quality, HLS: s.IsM3U8})
	}
	return candidates, nil
}
