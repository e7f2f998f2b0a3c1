package preset

import (
	"strings"

	"hlstype/internal/sanitize"
)

type Category string

const (
	CategoryLigatures     Category = "ligatures"
	CategoryStylisticSets Category = "stylistic-sets"
	CategoryAlternates    Category = "alternates"
	CategoryDecorative    Category = "decorative"
	CategoryOther         Category = "other"
)

// Feature is an OpenType feature tag offered to editors.
type Feature struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

var catalog = []Feature{
	{"liga", "Standard Ligatures", CategoryLigatures, "Common letter combinations like fi, fl"},
	{"dlig", "Discretionary Ligatures", CategoryLigatures, "Optional decorative ligatures"},
	{"calt", "Contextual Alternates", CategoryLigatures, "Context-aware letter forms"},
	{"ss01", "Stylistic Set 1", CategoryStylisticSets, "Alternate character designs"},
	{"ss02", "Stylistic Set 2", CategoryStylisticSets, "Alternate character designs"},
	{"ss03", "Stylistic Set 3", CategoryStylisticSets, "Alternate character designs"},
	{"ss04", "Stylistic Set 4", CategoryStylisticSets, "Alternate character designs"},
	{"ss05", "Stylistic Set 5", CategoryStylisticSets, "Alternate character designs"},
	{"swsh", "Swashes", CategoryAlternates, "Decorative flourishes"},
	{"cswh", "Contextual Swashes", CategoryAlternates, "Context-aware decorative flourishes"},
	{"salt", "Stylistic Alternates", CategoryAlternates, "Alternative character forms"},
	{"titl", "Titling", CategoryAlternates, "Optimized for large titles"},
	{"ornm", "Ornaments", CategoryDecorative, "Decorative ornaments"},
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(catalog))
	for _, f := range catalog {
		m[f.ID] = struct{}{}
	}
	return m
}()

// Catalog returns a copy of the fixed feature list.
func Catalog() []Feature {
	return append([]Feature(nil), catalog...)
}

// IsKnown reports whether id is a catalog feature.
func IsKnown(id string) bool {
	_, ok := known[id]
	return ok
}

// FilterKnown keeps the catalog features of ids in order, dropping unknown
// ones and repeats.
func FilterKnown(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !IsKnown(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FeatureSettings renders features as a font-feature-settings value,
// e.g. `"liga", "calt"`.
func FeatureSettings(features []string) string {
	parts := make([]string, 0, len(features))
	for _, f := range features {
		if k := sanitize.Key(f); k != "" {
			parts = append(parts, `"`+k+`"`)
		}
	}
	return strings.Join(parts, ", ")
}
