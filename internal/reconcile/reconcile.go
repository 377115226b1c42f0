// Package reconcile merges raw records from several upstreams into one
// canonical entity per title.
//
// Records are grouped by their MyAnimeList id. A record without one joins the
// first group that shares one of its titles (compared with normalize.TitleKey);
// a group that never receives an id is dropped. Two distinct shows with the
// same normalized name are therefore merged when one of them has no id.
package reconcile

import (
	"slices"
	"strings"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/genre"
	"github.com/anineesan/anineesan-server/internal/metrics"
	"github.com/anineesan/anineesan-server/internal/normalize"
)

// DefaultSearchLimit is the result cap for search-style requests.
const DefaultSearchLimit = 20

// Options control a reconciliation pass.
type Options struct {
	// Limit caps the number of entities returned. Zero or negative means no cap.
	Limit int
}

type field uint8

const (
	fieldTitle field = iota
	fieldTitleEnglish
	fieldTitleNative
	fieldImage
	fieldBanner
	fieldSynopsis
	fieldMediaType
	fieldEpisodes
	fieldStatus
	fieldScore
	fieldPopularity
)

var defaultPriority = []domain.Source{domain.SourcePrimaryMeta, domain.SourceSecondaryMeta, domain.SourceScrape}

// priorities lists, per field, which sources may supply it and in what order.
var priorities = map[field][]domain.Source{
	fieldTitle:        defaultPriority,
	fieldTitleEnglish: defaultPriority,
	fieldTitleNative:  defaultPriority,
	fieldImage:        defaultPriority,
	fieldBanner:       {domain.SourceSecondaryMeta},
	fieldSynopsis:     defaultPriority,
	fieldMediaType:    defaultPriority,
	fieldEpisodes:     defaultPriority,
	fieldStatus:       defaultPriority,
	fieldScore:        defaultPriority,
	fieldPopularity:   defaultPriority,
}

type group struct {
	id       int
	keys     map[string]struct{}
	bySource map[domain.Source][]*domain.RawRecord
}

func newGroup(id int) *group {
	return &group{
		id:       id,
		keys:     make(map[string]struct{}),
		bySource: make(map[domain.Source][]*domain.RawRecord),
	}
}

func (g *group) add(r *domain.RawRecord, keys []string) {
	for _, k := range keys {
		g.keys[k] = struct{}{}
	}
	g.bySource[r.Source] = append(g.bySource[r.Source], r)
}

func (g *group) matches(keys []string) bool {
	for _, k := range keys {
		if _, ok := g.keys[k]; ok {
			return true
		}
	}
	return false
}

// Reconcile groups and merges records into canonical entities, in the order
// their groups were first seen. It is deterministic and does not modify
// records.
func Reconcile(records []domain.RawRecord, opts Options) []domain.CanonicalEntity {
	var groups []*group
	byID := make(map[int]*group)

	findByTitle := func(keys []string, idless bool) *group {
		for _, g := range groups {
			if idless && g.id != 0 {
				continue
			}
			if g.matches(keys) {
				return g
			}
		}
		return nil
	}

	for i := range records {
		r := &records[i]
		if !r.Source.Valid() {
			continue
		}
		keys := titleKeys(r)

		if r.PrimaryID > 0 {
			g, ok := byID[r.PrimaryID]
			if !ok {
				// Adopt an id-less group opened earlier for the same title.
				if g = findByTitle(keys, true); g != nil {
					g.id = r.PrimaryID
				} else {
					g = newGroup(r.PrimaryID)
					groups = append(groups, g)
				}
				byID[r.PrimaryID] = g
			}
			g.add(r, keys)
			continue
		}

		if len(keys) == 0 {
			continue
		}
		g := findByTitle(keys, false)
		if g == nil {
			g = newGroup(0)
			groups = append(groups, g)
		}
		g.add(r, keys)
	}

	entities := make([]domain.CanonicalEntity, 0, len(groups))
	for _, g := range groups {
		if g.id == 0 {
			metrics.DroppedGroups.Inc()
			continue
		}
		entities = append(entities, merge(g))
		if opts.Limit > 0 && len(entities) == opts.Limit {
			break
		}
	}
	metrics.ReconciledEntities.Observe(float64(len(entities)))
	return entities
}

func titleKeys(r *domain.RawRecord) []string {
	keys := make([]string, 0, 3)
	for _, t := range []string{r.Title, r.TitleEnglish, r.TitleNative} {
		if t == "" {
			continue
		}
		if k := normalize.TitleKey(t); k != "" && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// pick returns the first value ok accepts, walking sources in the field's
// priority order and records in arrival order within a source.
func pick[T any](g *group, f field, get func(*domain.RawRecord) (T, bool)) T {
	var zero T
	for _, src := range priorities[f] {
		for _, r := range g.bySource[src] {
			if v, ok := get(r); ok {
				return v
			}
		}
	}
	return zero
}

func text(get func(*domain.RawRecord) string) func(*domain.RawRecord) (string, bool) {
	return func(r *domain.RawRecord) (string, bool) {
		v := strings.TrimSpace(get(r))
		return v, v != ""
	}
}

func merge(g *group) domain.CanonicalEntity {
	e := domain.CanonicalEntity{
		ID:           g.id,
		Title:        pick(g, fieldTitle, text(func(r *domain.RawRecord) string { return r.Title })),
		TitleEnglish: pick(g, fieldTitleEnglish, text(func(r *domain.RawRecord) string { return r.TitleEnglish })),
		TitleNative:  pick(g, fieldTitleNative, text(func(r *domain.RawRecord) string { return r.TitleNative })),
		ImageURL:     pick(g, fieldImage, text(func(r *domain.RawRecord) string { return r.ImageURL })),
		BannerURL:    pick(g, fieldBanner, text(func(r *domain.RawRecord) string { return r.BannerURL })),
		Synopsis:     pick(g, fieldSynopsis, text(func(r *domain.RawRecord) string { return r.Synopsis })),
		MediaType:    pick(g, fieldMediaType, text(func(r *domain.RawRecord) string { return r.MediaType })),
		Status:       pick(g, fieldStatus, text(func(r *domain.RawRecord) string { return r.Status })),
	}

	e.Episodes = pick(g, fieldEpisodes, func(r *domain.RawRecord) (*int, bool) {
		if r.Episodes == nil || *r.Episodes < 0 {
			return nil, false
		}
		return domain.Ptr(*r.Episodes), true
	})
	e.Score = pick(g, fieldScore, func(r *domain.RawRecord) (*float64, bool) {
		if r.Score == nil {
			return nil, false
		}
		v, ok := normalizeScore(r.Source, *r.Score)
		if !ok {
			return nil, false
		}
		return &v, true
	})
	e.Popularity = pick(g, fieldPopularity, func(r *domain.RawRecord) (*float64, bool) {
		if r.Popularity == nil || *r.Popularity < 0 {
			return nil, false
		}
		return domain.Ptr(*r.Popularity), true
	})

	var genres, studios, links [][]string
	for _, src := range defaultPriority {
		for _, r := range g.bySource[src] {
			genres = append(genres, r.Genres)
			studios = append(studios, r.Studios)
			links = append(links, r.ExternalLinks)
		}
		if len(g.bySource[src]) > 0 {
			e.Sources = append(e.Sources, src)
		}
	}
	e.Genres = genre.Union(genres...)
	e.Studios = unionFold(studios...)
	e.ExternalLinks = unionExact(links...)
	return e
}

// normalizeScore converts a score from its source's scale to 0-10.
func normalizeScore(src domain.Source, v float64) (float64, bool) {
	switch src {
	case domain.SourcePrimaryMeta:
		// Already 0-10.
	case domain.SourceSecondaryMeta:
		v /= 10
	case domain.SourceScrape:
		// The scrape client scales mirror ratings to 0-10.
	default:
		return 0, false
	}
	if v <= 0 {
		return 0, false
	}
	return min(v, 10), true
}

func unionFold(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

func unionExact(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
