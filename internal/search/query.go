package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	Query      string
	GenreSlugs []string // any of
	MediaTypes []string // any of, display form ("TV", "Movie")
	MinScore   float64

	Limit  int
	Offset int

	IncludeFacets bool
}

// Result holds the hits of one search in relevance order.
type Result struct {
	Total  uint64
	Hits   []Hit
	Genres []FacetCount
}

// Hit is one matching record.
type Hit struct {
	Position int // index into the snapshot's records
	Score    float64
	Title    string
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string
	Count int
}

// Search runs params against the index.
func (c *CorpusIndex) Search(ctx context.Context, params Params) (*Result, error) {
	if c.Len() == 0 {
		return &Result{}, nil
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.Fields = []string{"title"}
	req.SortBy([]string{"-_score", "_id"})
	if params.IncludeFacets {
		req.AddFacet("genre_slugs", bleve.NewFacetRequest("genre_slugs", 20))
	}

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil || pos < 0 || pos >= c.size {
			continue
		}
		hit := Hit{Position: pos, Score: h.Score}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		out.Hits = append(out.Hits, hit)
	}

	if facet, ok := res.Facets["genre_slugs"]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			out.Genres = append(out.Genres, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return out, nil
}

var titleFields = []struct {
	name  string
	boost float64
}{
	{"title", 3},
	{"title_english", 2.5},
	{"title_native", 2},
}

// buildQuery matches titles (boosted), fuzzy and prefix title terms and the
// synopsis, then applies the filters as a conjunction.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		var text []query.Query

		for _, f := range titleFields {
			m := bleve.NewMatchQuery(q)
			m.SetField(f.name)
			m.SetBoost(f.boost)
			text = append(text, m)
		}

		phrase := bleve.NewMatchPhraseQuery(q)
		phrase.SetField("title")
		phrase.SetBoost(4)
		text = append(text, phrase)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)
		text = append(text, fuzzy)

		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}

		synopsis := bleve.NewMatchQuery(q)
		synopsis.SetField("synopsis")
		synopsis.SetBoost(0.3)
		text = append(text, synopsis)

		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if len(params.GenreSlugs) > 0 {
		queries = append(queries, anyTerm("genre_slugs", params.GenreSlugs))
	}
	if len(params.MediaTypes) > 0 {
		queries = append(queries, anyTerm("media_type", params.MediaTypes))
	}
	if params.MinScore > 0 {
		minScore := params.MinScore
		inclusive := true
		r := bleve.NewNumericRangeInclusiveQuery(&minScore, nil, &inclusive, nil)
		r.SetField("score")
		queries = append(queries, r)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func anyTerm(field string, values []string) query.Query {
	terms := make([]query.Query, len(values))
	for i, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms[i] = tq
	}
	return bleve.NewDisjunctionQuery(terms...)
}
