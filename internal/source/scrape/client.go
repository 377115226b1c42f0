// Package scrape implements the catalog-site adapter: a JSON listing/search API
// served by several interchangeable mirrors, with the site's HTML search page as
// the last resort.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/normalize"
	"github.com/anineesan/anineesan-server/internal/ratelimit"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/source/htmlx"
)

var errMissingList = errors.New("response has no item list")

// Config configures the client.
type Config struct {
	APIURLs []string // mirror API roots, tried in order
	SiteURL string   // site root used for the HTML search fallback
}

// Client fetches listing pages and search results from the catalog site.
type Client struct {
	api     *source.Fetcher
	site    *source.Fetcher
	apiURLs []string
	siteURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a scrape client.
func NewClient(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...source.FetcherOption) *Client {
	apis := make([]string, 0, len(cfg.APIURLs))
	for _, u := range cfg.APIURLs {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			apis = append(apis, u)
		}
	}
	siteOpts := append([]source.FetcherOption{
		source.WithHeader("User-Agent", source.BrowserUserAgent),
		source.WithHeader("Accept", "text/html"),
	}, opts...)

	return &Client{
		api:     source.NewFetcher(limiter, logger, opts...),
		site:    source.NewFetcher(limiter, logger, siteOpts...),
		apiURLs: apis,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// pageEndpoints lists the listing endpoints in preference order.
func (c *Client) pageEndpoints() []string {
	out := make([]string, 0, len(c.apiURLs)*3)
	for _, api := range c.apiURLs {
		out = append(out, api+"/v1/anime/latest", api+"/anime/latest", api+"/anime/popular")
	}
	return out
}

// searchEndpoints lists the API search endpoints followed by the HTML search page.
func (c *Client) searchEndpoints() []string {
	out := make([]string, 0, len(c.apiURLs)*2+1)
	for _, api := range c.apiURLs {
		out = append(out, api+"/v1/anime/search", api+"/anime/search")
	}
	if c.siteURL != "" {
		out = append(out, c.htmlSearchURL())
	}
	return out
}

func (c *Client) htmlSearchURL() string {
	return c.siteURL + "/search.html"
}

// FetchPage returns one listing page. An empty page means the listing is
// exhausted. It has the signature the corpus cache expects of a page fetcher.
func (c *Client) FetchPage(ctx context.Context, page int) ([]domain.RawRecord, error) {
	target := strconv.Itoa(page)
	if page < 1 {
		return nil, source.Wrap("page", domain.SourceScrape, target, fmt.Errorf("page must be >= 1"))
	}

	records, err := source.FirstOf(ctx, c.pageEndpoints(), func(ctx context.Context, endpoint string) ([]domain.RawRecord, error) {
		body, err := c.api.Get(ctx, endpoint, url.Values{"page": {target}}, nil)
		if err != nil {
			return nil, err
		}
		return c.decodeAPI(body)
	})
	if err != nil {
		return nil, source.Wrap("page", domain.SourceScrape, target, err)
	}
	return records, nil
}

// Search queries the mirror APIs and falls back to the HTML search page.
func (c *Client) Search(ctx context.Context, text string) ([]domain.RawRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, source.Wrap("search", domain.SourceScrape, text, source.ErrNotFound)
	}

	htmlSearch := c.htmlSearchURL()
	records, err := source.FirstOf(ctx, c.searchEndpoints(), func(ctx context.Context, endpoint string) ([]domain.RawRecord, error) {
		if endpoint == htmlSearch {
			return c.searchHTML(ctx, text)
		}
		body, err := c.api.Get(ctx, endpoint, url.Values{"q": {text}}, nil)
		if err != nil {
			return nil, err
		}
		return c.decodeAPI(body)
	})
	if err != nil {
		return nil, source.Wrap("search", domain.SourceScrape, text, err)
	}
	return records, nil
}

func (c *Client) decodeAPI(body []byte) ([]domain.RawRecord, error) {
	items, err := decodeItems(body)
	if err != nil {
		return nil, source.Parsef("%v", err)
	}

	records := make([]domain.RawRecord, 0, len(items))
	for i, item := range items {
		var raw rawItem
		if err := json.Unmarshal(item, &raw); err != nil {
			source.SkipItem(c.logger, domain.SourceScrape, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		record, err := c.toRecord(raw)
		if err != nil {
			source.SkipItem(c.logger, domain.SourceScrape, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) toRecord(raw rawItem) (domain.RawRecord, error) {
	title := normalize.Whitespace(raw.Title.primary())
	if title == "" {
		return domain.RawRecord{}, source.Parsef("item %q has no title", raw.ID)
	}

	record := domain.RawRecord{
		FetchedAt:    c.now(),
		Source:       domain.SourceScrape,
		PrimaryID:    int(raw.MalID),
		NativeID:     string(raw.ID),
		Title:        title,
		TitleEnglish: normalize.Whitespace(raw.Title.English),
		TitleNative:  normalize.Whitespace(raw.Title.Native),
		ImageURL:     firstNonEmpty(raw.Image, raw.Poster),
		BannerURL:    raw.Cover,
		Synopsis:     htmlx.StripTags(raw.Description),
		MediaType:    normalize.MediaType(raw.Type),
		Status:       normalize.Status(raw.Status),
		Genres:       raw.Genres,
	}
	if record.PrimaryID == 0 {
		record.PrimaryID = int(raw.MalIDCamel)
	}
	if record.TitleEnglish == title {
		record.TitleEnglish = ""
	}
	if eps := int(firstPositive(raw.TotalEpisodes, raw.Episodes)); eps > 0 {
		record.Episodes = domain.Ptr(eps)
	}
	// Mirrors report either a 0-10 score or a 0-100 percentage.
	if score := float64(raw.Rating); score > 0 {
		if score > 10 {
			score /= 10
		}
		record.Score = domain.Ptr(score)
	}
	if raw.URL != "" {
		record.ExternalLinks = []string{raw.URL}
	}
	return record, nil
}

// searchHTML parses the site's search results page.
func (c *Client) searchHTML(ctx context.Context, text string) ([]domain.RawRecord, error) {
	body, err := c.site.Get(ctx, c.htmlSearchURL(), url.Values{"keyword": {text}}, nil)
	if err != nil {
		return nil, err
	}
	doc, err := htmlx.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrParse, err)
	}

	list := htmlx.Find(doc, htmlx.Element("div", "last_episodes"))
	if list == nil {
		return nil, source.Parsef("search page has no result list")
	}

	var records []domain.RawRecord
	for i, item := range htmlx.FindAll(list, htmlx.Element("li")) {
		record, err := c.parseHTMLItem(item)
		if err != nil {
			source.SkipItem(c.logger, domain.SourceScrape, fmt.Errorf("result %d: %w", i, err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) parseHTMLItem(item *html.Node) (domain.RawRecord, error) {
	name := htmlx.Find(item, htmlx.Element("p", "name"))
	link := htmlx.Find(name, htmlx.Element("a"))
	if link == nil {
		return domain.RawRecord{}, source.Parsef("result has no title link")
	}

	title := normalize.Whitespace(htmlx.Attr(link, "title"))
	if title == "" {
		title = htmlx.Text(link)
	}
	if title == "" {
		return domain.RawRecord{}, source.Parsef("result has an empty title")
	}

	href := htmlx.Attr(link, "href")
	slug := href[strings.LastIndex(href, "/")+1:]

	record := domain.RawRecord{
		FetchedAt: c.now(),
		Source:    domain.SourceScrape,
		NativeID:  slug,
		Title:     title,
	}
	if img := htmlx.Find(item, htmlx.Element("div", "img")); img != nil {
		record.ImageURL = htmlx.FindAttr(img, htmlx.Element("img"), "src")
	}
	if href != "" {
		record.ExternalLinks = []string{c.absolute(href)}
	}
	return record, nil
}

func (c *Client) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.siteURL + "/" + strings.TrimLeft(href, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...looseInt) looseInt {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
