// Package css holds the lightweight, regular expression based CSS helpers
// used on uploaded font kits: sanitising, @font-face extraction and url()
// rewriting. None of them is a full CSS parser; nested blocks and comments
// containing braces are not understood.
package css

import (
	"regexp"
	"strings"
)

var (
	reExpression  = regexp.MustCompile(`(?i)expression\s*\(`)
	reMozBinding  = regexp.MustCompile(`(?i)-moz-binding\s*:`)
	reJavascript  = regexp.MustCompile(`(?i)javascript\s*:`)
	reAtKeyword   = regexp.MustCompile(`(?i)@[a-z-]+`)
	reSanitizeURL = regexp.MustCompile(`(?i)url\s*\(\s*["']?([^"')\s]+)["']?\s*\)`)
	reAllowedURL  = regexp.MustCompile(`(?i)^(https?://|data:font/|data:application/font|/)`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

const fontFaceKeyword = "@font-face"

// Sanitize strips script URLs, CSS expressions, bindings, every at-rule
// keyword other than @font-face and any url() outside the allowed schemes.
// Passes repeat until nothing changes so the result is a fixed point.
func Sanitize(css string) string {
	for {
		next := sanitizePass(css)
		if next == css {
			return next
		}
		css = next
	}
}

func sanitizePass(css string) string {
	css = reExpression.ReplaceAllString(css, "")
	css = reMozBinding.ReplaceAllString(css, "")
	css = reJavascript.ReplaceAllString(css, "")

	css = reAtKeyword.ReplaceAllStringFunc(css, func(kw string) string {
		if strings.HasPrefix(strings.ToLower(kw), fontFaceKeyword) {
			return kw
		}
		return ""
	})

	return reSanitizeURL.ReplaceAllStringFunc(css, func(token string) string {
		m := reSanitizeURL.FindStringSubmatch(token)
		if len(m) == 2 && reAllowedURL.MatchString(m[1]) {
			return token
		}
		return ""
	})
}

// Minify collapses every whitespace run into a single space.
func Minify(css string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(css, " "))
}
