package css

import (
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	tcss "github.com/tdewolff/parse/v2/css"
)

// FontFace is one @font-face rule of a kit stylesheet.
type FontFace struct {
	Family  string   `json:"family"`
	Src     string   `json:"src"`
	Weight  string   `json:"weight"`
	Style   string   `json:"style"`
	Sources []Source `json:"sources,omitempty"`
}

// Source is a single entry of a src descriptor list.
type Source struct {
	URL    string `json:"url,omitempty"`
	Local  string `json:"local,omitempty"`
	Format string `json:"format,omitempty"`
}

const defaultDescriptor = "normal"

var (
	reFontFaceBlock = regexp.MustCompile(`(?is)@font-face\s*\{([^}]*)\}`)
	reFamily        = regexp.MustCompile(`(?i)font-family:\s*["']?([^"';\n]+)["']?`)
	reSrc           = regexp.MustCompile(`(?i)src:\s*([^;]+);`)
	reWeight        = regexp.MustCompile(`(?i)font-weight:\s*([^;]+);`)
	reStyle         = regexp.MustCompile(`(?i)font-style:\s*([^;]+);`)
)

// ParseFontFaces extracts @font-face rules in order of appearance. Rules
// without a font-family are skipped; repeated families are kept.
func ParseFontFaces(css string) []FontFace {
	var faces []FontFace
	for _, m := range reFontFaceBlock.FindAllStringSubmatch(css, -1) {
		body := m[1]

		face := FontFace{
			Family: firstGroup(reFamily, body),
			Src:    firstGroup(reSrc, body),
			Weight: firstGroup(reWeight, body),
			Style:  firstGroup(reStyle, body),
		}
		if face.Family == "" {
			continue
		}
		if face.Weight == "" {
			face.Weight = defaultDescriptor
		}
		if face.Style == "" {
			face.Style = defaultDescriptor
		}
		face.Sources = ParseSources(face.Src)
		faces = append(faces, face)
	}
	return faces
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseSources splits a src descriptor value such as
//
//	url('a.woff2') format("woff2"), local(Foo), url(a.woff) format('woff')
//
// into its comma separated entries.
func ParseSources(src string) []Source {
	if strings.TrimSpace(src) == "" {
		return nil
	}

	var (
		sources []Source
		cur     Source
		fn      string
	)
	flush := func() {
		if cur != (Source{}) {
			sources = append(sources, cur)
		}
		cur = Source{}
	}

	lexer := tcss.NewLexer(parse.NewInputString(src))
	for {
		tt, data := lexer.Next()
		switch tt {
		case tcss.ErrorToken:
			flush()
			return sources
		case tcss.URLToken:
			cur.URL = unquoteURL(string(data))
		case tcss.FunctionToken:
			fn = strings.TrimSuffix(strings.ToLower(string(data)), "(")
		case tcss.StringToken:
			cur.set(fn, unquote(string(data)))
		case tcss.IdentToken:
			if fn == "local" {
				if cur.Local != "" {
					cur.Local += " "
				}
				cur.Local += string(data)
			} else {
				cur.set(fn, string(data))
			}
		case tcss.RightParenthesisToken:
			fn = ""
		case tcss.CommaToken:
			if fn == "" {
				flush()
			}
		}
	}
}

func (s *Source) set(fn, value string) {
	switch fn {
	case "url":
		s.URL = value
	case "local":
		s.Local = value
	case "format":
		s.Format = value
	}
}

func unquoteURL(token string) string {
	v := token
	if i := strings.IndexByte(v, '('); i >= 0 {
		v = v[i+1:]
	}
	v = strings.TrimSuffix(v, ")")
	return unquote(strings.TrimSpace(v))
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
