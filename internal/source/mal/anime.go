package mal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/normalize"
	"github.com/anineesan/anineesan-server/internal/source"
)

// FetchByQuery searches MyAnimeList by title.
func (c *Client) FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error) {
	text = strings.TrimSpace(text)
	// The API rejects queries shorter than three characters.
	if len([]rune(text)) < 3 || !c.keyed {
		return nil, source.Wrap("search", c.Source(), text, source.ErrNotFound)
	}

	query := url.Values{
		"q":      {text},
		"limit":  {strconv.Itoa(c.limit)},
		"fields": {strings.Join(listFields, ",")},
	}
	body, err := c.get(ctx, "/anime", query)
	if err != nil {
		return nil, source.Wrap("search", c.Source(), text, err)
	}

	records, err := c.decodeList(body)
	if err != nil {
		return nil, source.Wrap("search", c.Source(), text, err)
	}
	return records, nil
}

// FetchByID fetches full details for one MyAnimeList id.
func (c *Client) FetchByID(ctx context.Context, id int) (*domain.RawRecord, error) {
	if id <= 0 {
		return nil, source.Wrap("details", c.Source(), strconv.Itoa(id), source.ErrNotFound)
	}
	if !c.keyed {
		return c.Pages().Details(ctx, id)
	}

	query := url.Values{"fields": {strings.Join(detailFields, ",")}}
	body, err := c.get(ctx, "/anime/"+strconv.Itoa(id), query)
	if err != nil {
		return nil, source.Wrap("details", c.Source(), strconv.Itoa(id), err)
	}

	var raw rawAnime
	if err := source.DecodeJSON(body, &raw); err != nil {
		return nil, source.Wrap("details", c.Source(), strconv.Itoa(id), err)
	}
	record, err := c.toRecord(raw)
	if err != nil {
		return nil, source.Wrap("details", c.Source(), strconv.Itoa(id), err)
	}
	return &record, nil
}

// decodeList decodes a {"data":[{"node":...}]} page, skipping malformed nodes.
func (c *Client) decodeList(body []byte) ([]domain.RawRecord, error) {
	var list rawList
	if err := source.DecodeJSON(body, &list); err != nil {
		return nil, err
	}

	records := make([]domain.RawRecord, 0, len(list.Data))
	for i, item := range list.Data {
		var raw rawAnime
		if err := json.Unmarshal(item.Node, &raw); err != nil {
			source.SkipItem(c.logger, c.Source(), fmt.Errorf("item %d: %w", i, err))
			continue
		}
		record, err := c.toRecord(raw)
		if err != nil {
			source.SkipItem(c.logger, c.Source(), fmt.Errorf("item %d: %w", i, err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// toRecord converts an API node. Nodes without an id or title are rejected.
func (c *Client) toRecord(raw rawAnime) (domain.RawRecord, error) {
	if raw.ID <= 0 || strings.TrimSpace(raw.Title) == "" {
		return domain.RawRecord{}, source.Parsef("anime node missing id or title")
	}

	record := domain.RawRecord{
		FetchedAt:    c.now(),
		Source:       domain.SourcePrimaryMeta,
		PrimaryID:    raw.ID,
		NativeID:     strconv.Itoa(raw.ID),
		Title:        normalize.Whitespace(raw.Title),
		TitleEnglish: normalize.Whitespace(raw.AlternativeTitles.En),
		TitleNative:  normalize.Whitespace(raw.AlternativeTitles.Ja),
		ImageURL:     firstNonEmpty(raw.MainPicture.Large, raw.MainPicture.Medium),
		Synopsis:     strings.TrimSpace(raw.Synopsis),
		MediaType:    normalize.MediaType(raw.MediaType),
		Status:       normalize.Status(raw.Status),
		Score:        raw.Mean,
		Popularity:   raw.NumListUsers,
		Genres:       names(raw.Genres),
		Studios:      names(raw.Studios),
		ExternalLinks: []string{
			fmt.Sprintf("%s/anime/%d", c.siteURL, raw.ID),
		},
	}
	// MyAnimeList reports 0 episodes for titles still airing.
	if raw.NumEpisodes > 0 {
		record.Episodes = domain.Ptr(raw.NumEpisodes)
	}
	// A mean of 0 means the title has not been scored yet.
	if record.Score != nil && *record.Score <= 0 {
		record.Score = nil
	}
	return record, nil
}

func names(in []rawNamed) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if name := strings.TrimSpace(n.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
