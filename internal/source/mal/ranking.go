package mal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/source"
)

// RankingType selects a MyAnimeList ranking list.
type RankingType string

// Ranking lists supported by the API.
const (
	RankingAll          RankingType = "all"
	RankingAiring       RankingType = "airing"
	RankingUpcoming     RankingType = "upcoming"
	RankingTV           RankingType = "tv"
	RankingMovie        RankingType = "movie"
	RankingByPopularity RankingType = "bypopularity"
	RankingFavorite     RankingType = "favorite"
)

// Season is one of the four anime broadcast seasons.
type Season string

// Seasons.
const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// ParseSeason validates a season name. The empty string is rejected.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case Winter:
		return Winter, nil
	case Spring:
		return Spring, nil
	case Summer:
		return Summer, nil
	case Fall:
		return Fall, nil
	default:
		return "", fmt.Errorf("invalid season %q: must be winter, spring, summer or fall", s)
	}
}

// SeasonOf returns the broadcast season a date falls in. December counts as
// winter of the same calendar year, matching how the site labels it.
func SeasonOf(t time.Time) (int, Season) {
	switch t.Month() {
	case time.December, time.January, time.February:
		return t.Year(), Winter
	case time.March, time.April, time.May:
		return t.Year(), Spring
	case time.June, time.July, time.August:
		return t.Year(), Summer
	default:
		return t.Year(), Fall
	}
}

// Ranking returns the top titles of a ranking list, in rank order.
func (c *Client) Ranking(ctx context.Context, rankingType RankingType, limit int) ([]domain.RawRecord, error) {
	if rankingType == "" {
		rankingType = RankingAll
	}
	query := url.Values{
		"ranking_type": {string(rankingType)},
		"limit":        {strconv.Itoa(clampLimit(limit))},
		"fields":       {strings.Join(listFields, ",")},
	}

	body, err := c.get(ctx, "/anime/ranking", query)
	if err != nil {
		return nil, source.Wrap("ranking", c.Source(), string(rankingType), err)
	}
	records, err := c.decodeList(body)
	if err != nil {
		return nil, source.Wrap("ranking", c.Source(), string(rankingType), err)
	}
	return records, nil
}

// Seasonal returns the titles of one season sorted by score. A zero year or
// empty season falls back to the current season.
func (c *Client) Seasonal(ctx context.Context, year int, season Season, limit int) ([]domain.RawRecord, error) {
	currentYear, currentSeason := SeasonOf(c.now())
	if year <= 0 {
		year = currentYear
	}
	if season == "" {
		season = currentSeason
	}
	if _, err := ParseSeason(string(season)); err != nil {
		return nil, err
	}

	query := url.Values{
		"sort":   {"anime_score"},
		"limit":  {strconv.Itoa(clampLimit(limit))},
		"fields": {strings.Join(listFields, ",")},
	}
	target := fmt.Sprintf("%d/%s", year, season)

	body, err := c.get(ctx, "/anime/season/"+target, query)
	if err != nil {
		return nil, source.Wrap("seasonal", c.Source(), target, err)
	}
	records, err := c.decodeList(body)
	if err != nil {
		return nil, source.Wrap("seasonal", c.Source(), target, err)
	}
	return records, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultSearchLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
