package scrape

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Mirror APIs disagree on field types, so the loose fields below accept a
// JSON string or number.

type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		*s = looseString(b)
		return nil
	}
	return fmt.Errorf("expected string or number, got %.20s", b)
}

type looseInt int

func (i *looseInt) UnmarshalJSON(b []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		// Values like "12 eps" or "?" carry no usable count.
		return nil
	}
	*i = looseInt(n)
	return nil
}

type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return nil
	}
	*f = looseFloat(v)
	return nil
}

// looseTitle accepts a plain string or an {romaji, english, native} object.
type looseTitle struct {
	Romaji        string `json:"romaji"`
	English       string `json:"english"`
	Native        string `json:"native"`
	UserPreferred string `json:"userPreferred"`
}

func (t *looseTitle) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &t.Romaji)
	}
	type plain looseTitle
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = looseTitle(p)
	return nil
}

func (t looseTitle) primary() string {
	for _, v := range []string{t.Romaji, t.UserPreferred, t.English} {
		if v != "" {
			return v
		}
	}
	return ""
}

type rawItem struct {
	ID            looseString `json:"id"`
	MalID         looseInt    `json:"mal_id"`
	MalIDCamel    looseInt    `json:"malId"`
	Title         looseTitle  `json:"title"`
	Image         string      `json:"image"`
	Poster        string      `json:"poster"`
	Cover         string      `json:"cover"`
	Description   string      `json:"description"`
	Type          string      `json:"type"`
	Status        string      `json:"status"`
	TotalEpisodes looseInt    `json:"totalEpisodes"`
	Episodes      looseInt    `json:"episodes"`
	Rating        looseFloat  `json:"rating"`
	Genres        []string    `json:"genres"`
	URL           string      `json:"url"`
}

// decodeItems accepts {"data":[...]}, {"results":[...]} or a bare array.
func decodeItems(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped struct {
		Data    []json.RawMessage `json:"data"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	return nil, errMissingList
}
