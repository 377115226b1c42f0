// Package search provides full-text search over a corpus snapshot using an
// in-memory Bleve index. An index is built once per snapshot and never
// modified afterwards.
package search

import (
	"strconv"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/genre"
)

// Document is the indexed form of one snapshot record. Its ID is the record's
// position in the snapshot, so hits map straight back to records.
type Document struct {
	ID           string
	Title        string
	TitleEnglish string
	TitleNative  string
	Synopsis     string
	MediaType    string
	Status       string
	GenreSlugs   []string
	MalID        int
	Score        float64
}

// FromRecord builds the document for the record at position pos.
func FromRecord(pos int, r *domain.RawRecord) *Document {
	doc := &Document{
		ID:           strconv.Itoa(pos),
		Title:        r.Title,
		TitleEnglish: r.TitleEnglish,
		TitleNative:  r.TitleNative,
		Synopsis:     r.Synopsis,
		MediaType:    r.MediaType,
		Status:       r.Status,
		MalID:        r.PrimaryID,
	}
	for _, g := range r.Genres {
		if key := genre.Key(g); key != "" {
			doc.GenreSlugs = append(doc.GenreSlugs, key)
		}
	}
	if r.Score != nil {
		doc.Score = *r.Score
	}
	return doc
}

// ToMap converts the document to the field names used by the mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"title":    d.Title,
		"mal_id":   float64(d.MalID),
		"score":    d.Score,
		"synopsis": d.Synopsis,
	}
	if d.TitleEnglish != "" {
		m["title_english"] = d.TitleEnglish
	}
	if d.TitleNative != "" {
		m["title_native"] = d.TitleNative
	}
	if d.MediaType != "" {
		m["media_type"] = d.MediaType
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if len(d.GenreSlugs) > 0 {
		m["genre_slugs"] = d.GenreSlugs
	}
	return m
}
