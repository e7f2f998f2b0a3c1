// Package sanitize cleans user supplied names and identifiers before they are
// stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict       = bluemonday.StrictPolicy()
	reKeyInvalid = regexp.MustCompile(`[^a-z0-9_-]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Text strips every tag from s, decodes entities, collapses whitespace and
// trims it. Decoding can reveal markup such as "&lt;b&gt;", so passes repeat
// until the result no longer changes. Lone angle brackets stay as plain text.
func Text(s string) string {
	out := textPass(s)
	// every changing pass shortens the string
	for i := 0; i <= len(s); i++ {
		next := textPass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func textPass(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// Key lowercases s and drops everything except a-z, 0-9, '_' and '-'.
func Key(s string) string {
	return reKeyInvalid.ReplaceAllString(strings.ToLower(s), "")
}

// Texts applies Text to every element and drops the empty results.
func Texts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := Text(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
