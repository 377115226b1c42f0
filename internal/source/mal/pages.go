package mal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/normalize"
	"github.com/anineesan/anineesan-server/internal/source"
	"github.com/anineesan/anineesan-server/internal/source/htmlx"
)

var animeHrefPattern = regexp.MustCompile(`/anime/(\d+)`)

// Recommendation is one user recommendation from the site's recent list:
// people who liked Liked also suggest Suggested.
type Recommendation struct {
	Liked     RecommendedTitle
	Suggested RecommendedTitle
	Reason    string
}

// RecommendedTitle identifies one side of a recommendation.
type RecommendedTitle struct {
	ID       int
	Title    string
	URL      string
	ImageURL string
}

// PageScraper reads data the API does not expose from the MyAnimeList site.
type PageScraper struct {
	client *Client
}

// Pages returns the site scraper that shares this client's transport.
func (c *Client) Pages() *PageScraper {
	return &PageScraper{client: c}
}

// RecentRecommendations scrapes the most recent user recommendations.
// Units that do not parse are skipped and counted.
func (p *PageScraper) RecentRecommendations(ctx context.Context) ([]Recommendation, error) {
	c := p.client
	query := url.Values{"s": {"recentrecs"}, "t": {"anime"}}

	body, err := c.site.Get(ctx, c.siteURL+"/recommendations.php", query, nil)
	if err != nil {
		return nil, source.Wrap("recommendations", c.Source(), "", err)
	}
	doc, err := htmlx.Parse(body)
	if err != nil {
		return nil, source.Wrap("recommendations", c.Source(), "", fmt.Errorf("%w: %v", source.ErrParse, err))
	}

	units := htmlx.FindAll(doc, htmlx.Element("div", "spaceit"))
	recs := make([]Recommendation, 0, len(units))
	for i, unit := range units {
		rec, err := p.parseRecommendation(unit)
		if err != nil {
			source.SkipItem(c.logger, c.Source(), fmt.Errorf("recommendation %d: %w", i, err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (p *PageScraper) parseRecommendation(unit *html.Node) (Recommendation, error) {
	links := htmlx.FindAll(unit, htmlx.Element("a", "hoverinfo_trigger"))
	if len(links) < 2 {
		return Recommendation{}, source.Parsef("expected two linked titles, found %d", len(links))
	}

	liked, err := p.parseLinkedTitle(links[0])
	if err != nil {
		return Recommendation{}, err
	}
	suggested, err := p.parseLinkedTitle(links[1])
	if err != nil {
		return Recommendation{}, err
	}

	return Recommendation{
		Liked:     liked,
		Suggested: suggested,
		Reason:    htmlx.FindText(unit, htmlx.Element("div", "recommendations-user-recs-text")),
	}, nil
}

func (p *PageScraper) parseLinkedTitle(link *html.Node) (RecommendedTitle, error) {
	href := htmlx.Attr(link, "href")
	m := animeHrefPattern.FindStringSubmatch(href)
	if m == nil {
		return RecommendedTitle{}, source.Parsef("link %q has no anime id", href)
	}
	id, _ := strconv.Atoi(m[1])

	title := ""
	image := ""
	if img := htmlx.Find(link, htmlx.Element("img")); img != nil {
		title = htmlx.Attr(img, "alt")
		image = firstNonEmpty(htmlx.Attr(img, "data-src"), htmlx.Attr(img, "src"))
	}
	if title == "" {
		title = htmlx.Text(link)
	}
	title = strings.TrimPrefix(normalize.Whitespace(title), "Anime: ")
	if title == "" {
		return RecommendedTitle{}, source.Parsef("anime %d has no title", id)
	}

	return RecommendedTitle{
		ID:       id,
		Title:    title,
		URL:      p.absolute(href),
		ImageURL: image,
	}, nil
}

// Details scrapes the title page for one id. It backs FetchByID when no API
// client id is configured.
func (p *PageScraper) Details(ctx context.Context, id int) (*domain.RawRecord, error) {
	c := p.client
	target := strconv.Itoa(id)
	if id <= 0 {
		return nil, source.Wrap("page", c.Source(), target, source.ErrNotFound)
	}

	pageURL := fmt.Sprintf("%s/anime/%d", c.siteURL, id)
	body, err := c.site.Get(ctx, pageURL, nil, nil)
	if err != nil {
		return nil, source.Wrap("page", c.Source(), target, err)
	}
	doc, err := htmlx.Parse(body)
	if err != nil {
		return nil, source.Wrap("page", c.Source(), target, fmt.Errorf("%w: %v", source.ErrParse, err))
	}

	title := htmlx.FindText(doc, htmlx.Element("h1", "title-name"))
	if title == "" {
		title = htmlx.FindText(doc, htmlx.WithAttr("", "itemprop", "name"))
	}
	if title == "" {
		return nil, source.Wrap("page", c.Source(), target, source.Parsef("title page has no name"))
	}

	record := &domain.RawRecord{
		FetchedAt:     c.now(),
		Source:        domain.SourcePrimaryMeta,
		PrimaryID:     id,
		NativeID:      target,
		Title:         title,
		TitleEnglish:  htmlx.FindText(doc, htmlx.Element("p", "title-english")),
		ImageURL:      htmlx.FindAttr(doc, htmlx.WithAttr("img", "itemprop", "image"), "data-src"),
		Synopsis:      htmlx.FindText(doc, htmlx.WithAttr("p", "itemprop", "description")),
		ExternalLinks: []string{pageURL},
	}

	if score, err := strconv.ParseFloat(htmlx.FindText(doc, htmlx.WithAttr("span", "itemprop", "ratingValue")), 64); err == nil && score > 0 {
		record.Score = &score
	}
	for _, g := range htmlx.FindAll(doc, htmlx.WithAttr("span", "itemprop", "genre")) {
		if name := htmlx.Text(g); name != "" {
			record.Genres = append(record.Genres, name)
		}
	}
	return record, nil
}

func (p *PageScraper) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return p.client.siteURL + "/" + strings.TrimLeft(href, "/")
}
