package normalize

import "strings"

var mediaTypes = map[string]string{
	"tv":         "TV",
	"tv_short":   "TV Short",
	"movie":      "Movie",
	"ova":        "OVA",
	"ona":        "ONA",
	"special":    "Special",
	"tv_special": "TV Special",
	"music":      "Music",
	"cm":         "CM",
	"pv":         "PV",
}

var statuses = map[string]string{
	"finished_airing":  "Finished Airing",
	"finished":         "Finished Airing",
	"completed":        "Finished Airing",
	"currently_airing": "Currently Airing",
	"releasing":        "Currently Airing",
	"ongoing":          "Currently Airing",
	"airing":           "Currently Airing",
	"not_yet_aired":    "Not Yet Aired",
	"not_yet_released": "Not Yet Aired",
	"upcoming":         "Not Yet Aired",
	"cancelled":        "Cancelled",
	"hiatus":           "Hiatus",
}

func lookupKey(raw string) string {
	key := strings.ToLower(Whitespace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, "-", "_")
}

// MediaType maps the media type spellings used by the upstreams ("tv",
// "TV_SHORT", "Movie") onto one display form. Unknown values are returned cleaned.
func MediaType(raw string) string {
	if v, ok := mediaTypes[lookupKey(raw)]; ok {
		return v
	}
	return Label(raw)
}

// Status maps airing status spellings ("finished_airing", "RELEASING",
// "Ongoing") onto one display form. Unknown values are returned cleaned.
func Status(raw string) string {
	if v, ok := statuses[lookupKey(raw)]; ok {
		return v
	}
	return Label(raw)
}
