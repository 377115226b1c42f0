// Package anilist implements the secondary metadata adapter against the
// AniList GraphQL API.
package anilist

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/goccy/go-json"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/normalize"
	"github.com/anineesan/anineesan-server/internal/ratelimit"
	"github.com/anineesan/anineesan-server/internal/source"
)

const (
	defaultPerPage = 20

	// AniList allows 90 requests per minute per client.
	apiRPS = 1.5
)

const mediaFields = `
  id
  idMal
  title { romaji english native }
  coverImage { large medium }
  bannerImage
  description(asHtml: true)
  format
  episodes
  status
  averageScore
  popularity
  genres
  siteUrl
  studios(isMain: true) { nodes { name } }
  externalLinks { url }
`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {` + mediaFields + `}
  }
}`

const mediaQuery = `query ($idMal: Int) {
  Media(idMal: $idMal, type: ANIME) {` + mediaFields + `}
}`

// Config configures the client.
type Config struct {
	URL     string // e.g. https://graphql.anilist.co
	PerPage int
}

// Client is a rate-limited AniList client implementing source.Adapter.
type Client struct {
	fetcher *source.Fetcher
	url     string
	perPage int
	logger  *slog.Logger
	now     func() time.Time
}

var _ source.Adapter = (*Client)(nil)

// New creates an AniList client.
func New(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...source.FetcherOption) *Client {
	if cfg.PerPage <= 0 || cfg.PerPage > 50 {
		cfg.PerPage = defaultPerPage
	}
	if limiter != nil {
		if u, err := url.Parse(cfg.URL); err == nil {
			limiter.SetLimit(u.Host, apiRPS)
		}
	}
	return &Client{
		fetcher: source.NewFetcher(limiter, logger, opts...),
		url:     cfg.URL,
		perPage: cfg.PerPage,
		logger:  logger,
		now:     time.Now,
	}
}

// Source implements source.Adapter.
func (c *Client) Source() domain.Source {
	return domain.SourceSecondaryMeta
}

// FetchByQuery searches AniList by title.
func (c *Client) FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, source.Wrap("search", c.Source(), text, source.ErrNotFound)
	}

	var data struct {
		Page struct {
			Media []json.RawMessage `json:"media"`
		} `json:"Page"`
	}
	vars := map[string]any{"search": text, "perPage": c.perPage}
	if err := c.query(ctx, searchQuery, vars, &data); err != nil {
		return nil, source.Wrap("search", c.Source(), text, err)
	}

	records := make([]domain.RawRecord, 0, len(data.Page.Media))
	for i, item := range data.Page.Media {
		var raw rawMedia
		if err := json.Unmarshal(item, &raw); err != nil {
			source.SkipItem(c.logger, c.Source(), fmt.Errorf("media %d: %w", i, err))
			continue
		}
		record, err := c.toRecord(raw)
		if err != nil {
			source.SkipItem(c.logger, c.Source(), fmt.Errorf("media %d: %w", i, err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// FetchByID looks up a title by its MyAnimeList id.
func (c *Client) FetchByID(ctx context.Context, id int) (*domain.RawRecord, error) {
	target := strconv.Itoa(id)
	if id <= 0 {
		return nil, source.Wrap("details", c.Source(), target, source.ErrNotFound)
	}

	var data struct {
		Media *rawMedia `json:"Media"`
	}
	if err := c.query(ctx, mediaQuery, map[string]any{"idMal": id}, &data); err != nil {
		return nil, source.Wrap("details", c.Source(), target, err)
	}
	if data.Media == nil {
		return nil, source.Wrap("details", c.Source(), target, source.ErrNotFound)
	}

	record, err := c.toRecord(*data.Media)
	if err != nil {
		return nil, source.Wrap("details", c.Source(), target, err)
	}
	return &record, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// query posts a GraphQL request and decodes its data member into out.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, out any) error {
	body, err := c.fetcher.PostJSON(ctx, c.url, graphQLRequest{Query: q, Variables: vars})
	if err != nil {
		return err
	}

	var resp struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := source.DecodeJSON(body, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return classifyErrors(resp.Errors)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return source.Parsef("response has no data")
	}
	return source.DecodeJSON(resp.Data, out)
}

// classifyErrors maps GraphQL errors onto the source error classes using the
// HTTP status AniList attaches to each error.
func classifyErrors(errs []graphQLError) error {
	first := errs[0]
	if first.Status != 0 {
		if err := source.ClassifyStatus(first.Status); err != nil {
			return fmt.Errorf("%w: %s", err, first.Message)
		}
	}
	return fmt.Errorf("graphql: %s", first.Message)
}

type rawMedia struct {
	ID    int `json:"id"`
	IDMal int `json:"idMal"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	CoverImage struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"coverImage"`
	BannerImage  string   `json:"bannerImage"`
	Description  string   `json:"description"`
	Format       string   `json:"format"`
	Episodes     *int     `json:"episodes"`
	Status       string   `json:"status"`
	AverageScore *int     `json:"averageScore"`
	Popularity   *int     `json:"popularity"`
	Genres       []string `json:"genres"`
	SiteURL      string   `json:"siteUrl"`
	Studios      struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	ExternalLinks []struct {
		URL string `json:"url"`
	} `json:"externalLinks"`
}

func (c *Client) toRecord(raw rawMedia) (domain.RawRecord, error) {
	title := normalize.Whitespace(raw.Title.Romaji)
	if title == "" {
		title = normalize.Whitespace(raw.Title.English)
	}
	if raw.ID <= 0 || title == "" {
		return domain.RawRecord{}, source.Parsef("media missing id or title")
	}

	record := domain.RawRecord{
		FetchedAt:    c.now(),
		Source:       domain.SourceSecondaryMeta,
		PrimaryID:    raw.IDMal,
		NativeID:     strconv.Itoa(raw.ID),
		Title:        title,
		TitleEnglish: normalize.Whitespace(raw.Title.English),
		TitleNative:  normalize.Whitespace(raw.Title.Native),
		ImageURL:     raw.CoverImage.Large,
		BannerURL:    raw.BannerImage,
		Synopsis:     htmlToMarkdown(raw.Description),
		MediaType:    normalize.MediaType(raw.Format),
		Status:       normalize.Status(raw.Status),
		Genres:       raw.Genres,
	}
	if record.ImageURL == "" {
		record.ImageURL = raw.CoverImage.Medium
	}
	if raw.Episodes != nil && *raw.Episodes > 0 {
		record.Episodes = domain.Ptr(*raw.Episodes)
	}
	// averageScore stays on AniList's 0-100 scale here.
	if raw.AverageScore != nil && *raw.AverageScore > 0 {
		record.Score = domain.Ptr(float64(*raw.AverageScore))
	}
	if raw.Popularity != nil {
		record.Popularity = domain.Ptr(float64(*raw.Popularity))
	}
	for _, s := range raw.Studios.Nodes {
		if name := strings.TrimSpace(s.Name); name != "" {
			record.Studios = append(record.Studios, name)
		}
	}
	if raw.SiteURL != "" {
		record.ExternalLinks = append(record.ExternalLinks, raw.SiteURL)
	}
	for _, l := range raw.ExternalLinks {
		if l.URL != "" {
			record.ExternalLinks = append(record.ExternalLinks, l.URL)
		}
	}
	return record, nil
}

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// htmlToMarkdown converts description HTML to Markdown. Plain text is returned unchanged.
func htmlToMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}
