package css

import (
	"regexp"
	"strings"
)

var (
	reRewriteURL  = regexp.MustCompile(`(?i)url\s*\(\s*['"]?([^)'"\s]+)['"]?\s*\)`)
	reAbsoluteURL = regexp.MustCompile(`^(https?:)?//`)
)

// RewriteURLs turns every relative url() reference into
// url('<baseURL>/<ref>'). Protocol relative, http(s) and data: references are
// left alone. The join is textual: "../" segments are kept as written.
func RewriteURLs(css, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return reRewriteURL.ReplaceAllStringFunc(css, func(token string) string {
		m := reRewriteURL.FindStringSubmatch(token)
		if len(m) != 2 {
			return token
		}
		ref := m[1]
		if reAbsoluteURL.MatchString(ref) || strings.HasPrefix(ref, "data:") {
			return token
		}
		return "url('" + base + "/" + strings.TrimLeft(ref, "/") + "')"
	})
}
