package mal

import (
	"github.com/goccy/go-json"
)

// Raw API response types (internal)

type rawList struct {
	Data []rawListItem `json:"data"`
}

// rawListItem keeps the node undecoded so one malformed entry can be skipped
// without losing the rest of the page.
type rawListItem struct {
	Node    json.RawMessage `json:"node"`
	Ranking *struct {
		Rank int `json:"rank"`
	} `json:"ranking,omitempty"`
}

type rawAnime struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	MainPicture struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"main_picture"`
	AlternativeTitles struct {
		Synonyms []string `json:"synonyms"`
		En       string   `json:"en"`
		Ja       string   `json:"ja"`
	} `json:"alternative_titles"`
	Synopsis     string     `json:"synopsis"`
	Mean         *float64   `json:"mean"`
	MediaType    string     `json:"media_type"`
	Status       string     `json:"status"`
	NumEpisodes  int        `json:"num_episodes"`
	NumListUsers *float64   `json:"num_list_users"`
	Genres       []rawNamed `json:"genres"`
	Studios      []rawNamed `json:"studios"`
}

type rawNamed struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
