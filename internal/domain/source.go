// Package domain contains the catalog's core records: raw upstream records, the
// canonical entities merged from them, stream sources and corpus snapshots.
package domain

import (
	"fmt"
	"strings"
)

// Source identifies which kind of upstream produced a RawRecord.
// Declaration order is the default merge priority.
type Source uint8

// Known sources.
const (
	SourcePrimaryMeta Source = iota + 1
	SourceSecondaryMeta
	SourceScrape
)

// Sources lists every known source in priority order.
var Sources = []Source{SourcePrimaryMeta, SourceSecondaryMeta, SourceScrape}

// String returns the stable name used in logs, metrics and cache keys.
func (s Source) String() string {
	switch s {
	case SourcePrimaryMeta:
		return "primary"
	case SourceSecondaryMeta:
		return "secondary"
	case SourceScrape:
		return "scrape"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s >= SourcePrimaryMeta && s <= SourceScrape
}

// ParseSource converts a name produced by String back to a Source.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "primary", "mal":
		return SourcePrimaryMeta, nil
	case "secondary", "anilist":
		return SourceSecondaryMeta, nil
	case "scrape":
		return SourceScrape, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
