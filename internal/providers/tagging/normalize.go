package tagging

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"closet/internal/domain"
	"closet/internal/palette"
)

// tagList accepts a JSON list of strings, a single string, or a
// comma-delimited string, and always decodes into a list.
type tagList []string

func (l *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	switch data[0] {
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		*l = out
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitList(s)
	default:
		// Numbers, objects and booleans carry no usable tags.
		*l = nil
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// remoteResponse is every shape the classifier has been seen to return.
type remoteResponse struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Colors      tagList `json:"colors"`
	Color       tagList `json:"color"`
	Seasons     tagList `json:"seasons"`
	Season      tagList `json:"season"`
	Occasions   tagList `json:"occasions"`
	Occasion    tagList `json:"occasion"`
	Tags        tagList `json:"tags"`
}

var folder = cases.Fold()

// normalize maps a decoded response onto the canonical list-valued shape.
// Plural keys win over singular ones when both are present.
func normalize(resp remoteResponse) domain.Categorization {
	raw := pick(resp.Colors, resp.Color)
	colors := make([]string, len(raw))
	for i, c := range raw {
		colors[i] = palette.Canonical(c)
	}
	return domain.Categorization{
		Category:    strings.TrimSpace(resp.Category),
		Subcategory: strings.TrimSpace(resp.Subcategory),
		Colors:      dedupe(colors),
		Seasons:     dedupe(pick(resp.Seasons, resp.Season)),
		Occasions:   dedupe(pick(resp.Occasions, resp.Occasion)),
		Tags:        dedupe(resp.Tags),
	}
}

func pick(primary, secondary tagList) []string {
	if primary != nil {
		return primary
	}
	return secondary
}

// dedupe drops case-insensitive duplicates, keeping first occurrences.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		key := folder.String(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Merge overlays a remote categorization on the local color hint. Remote
// colors replace the local ones only when the classifier returned any.
func Merge(local []string, remote domain.Categorization) domain.Categorization {
	merged := remote
	if len(merged.Colors) == 0 {
		merged.Colors = append([]string{}, local...)
	}
	return merged
}

// LocalOnly returns the categorization derived from local colors alone.
func LocalOnly(local []string) domain.Categorization {
	return domain.Categorization{
		Colors:    append([]string{}, local...),
		Seasons:   []string{},
		Occasions: []string{},
		Tags:      []string{},
	}
}
