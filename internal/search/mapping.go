package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping for corpus documents. Titles use the
// standard analyzer because romanized Japanese does not stem well; synopsis
// text uses English stemming.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	for _, name := range []string{"title", "title_english", "title_native"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = name == "title"
		f.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	synopsis := bleve.NewTextFieldMapping()
	synopsis.Analyzer = en.AnalyzerName
	synopsis.Store = false
	docMapping.AddFieldMappingsAt("synopsis", synopsis)

	for _, name := range []string{"media_type", "status", "genre_slugs"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = name == "genre_slugs"
		docMapping.AddFieldMappingsAt(name, f)
	}

	for _, name := range []string{"mal_id", "score"} {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
