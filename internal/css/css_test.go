package css

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"expression", "a{width:expression(alert(1))}", "a{width:alert(1))}"},
		{"expression spaced", "a{width:EXPRESSION  (1)}", "a{width:1)}"},
		{"moz binding", "a{-moz-binding: url(/x.xml#y)}", "a{ url(/x.xml#y)}"},
		{"at rules", "@import 'x.css';@charset \"utf-8\";@font-face{}", " 'x.css'; \"utf-8\";@font-face{}"},
		{"font-face kept any case", "@FONT-FACE{font-family:A}", "@FONT-FACE{font-family:A}"},
		{"https url kept", "src:url('https://cdn/a.woff')", "src:url('https://cdn/a.woff')"},
		{"site relative kept", "src:url(/uploads/a.woff)", "src:url(/uploads/a.woff)"},
		{"data font kept", "src:url(data:font/woff2;base64,AAAA)", "src:url(data:font/woff2;base64,AAAA)"},
		{"data application font kept", "src:url(data:application/font-woff;base64,AA)", "src:url(data:application/font-woff;base64,AA)"},
		{"data image dropped", "src:url(\"data:image/svg+xml,abc\")", "src:"},
		{"relative dropped", "src:url(fonts/a.woff)", "src:"},
		{"ftp dropped", "src:url(ftp://host/a.woff)", "src:"},
		{"spliced expression", "expresexpression(sion(", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeJavascriptURL(t *testing.T) {
	out := Sanitize("a{background:url(javascript:alert(1))}")
	assert.NotContains(t, strings.ToLower(out), "javascript")
	assert.NotContains(t, out, "url(")
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"expresexpression(sion(",
		"javajavascript:script:alert(1)",
		"-moz--moz-binding:binding:",
		"@im@importport url(x)",
		"url(url(evil)https://x/y)",
		"@font-face{src:url('a.woff') format('woff'),url(\"https://x/b.woff2\")}",
		"@media screen{@font-face{font-family:X}}",
		"u@xrl(evil)",
		"@FONT-FACES{}",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestMinify(t *testing.T) {
	assert.Equal(t, "@font-face { font-family: A; }", Minify("\n@font-face {\n\tfont-family:  A;\n}\n"))
	assert.Equal(t, "", Minify(" \n\t "))
}

func TestParseFontFaces(t *testing.T) {
	src := `
/* generated */
@font-face {
	font-family: 'Brand Sans';
	src: url('https://site/kit/brand.woff2') format('woff2'),
	     url('https://site/kit/brand.woff') format('woff');
	font-weight: 700;
	font-style: italic;
}
@FONT-FACE{font-family:"Brand Sans";src:url(/k/regular.woff2);}
@font-face { src: url(/k/nofamily.woff); }
@font-face {
	font-family: Display;
	src: local(Display Regular), url("/k/display.ttf") format("truetype");
}
`
	faces := ParseFontFaces(src)
	require.Len(t, faces, 3)

	assert.Equal(t, "Brand Sans", faces[0].Family)
	assert.Equal(t, "700", faces[0].Weight)
	assert.Equal(t, "italic", faces[0].Style)
	assert.Contains(t, faces[0].Src, "brand.woff2")
	assert.Equal(t, []Source{
		{URL: "https://site/kit/brand.woff2", Format: "woff2"},
		{URL: "https://site/kit/brand.woff", Format: "woff"},
	}, faces[0].Sources)

	assert.Equal(t, "Brand Sans", faces[1].Family)
	assert.Equal(t, "normal", faces[1].Weight)
	assert.Equal(t, "normal", faces[1].Style)
	assert.Equal(t, "url(/k/regular.woff2)", faces[1].Src)

	assert.Equal(t, "Display", faces[2].Family)
	assert.Equal(t, []Source{
		{Local: "Display Regular"},
		{URL: "/k/display.ttf", Format: "truetype"},
	}, faces[2].Sources)
}

func TestParseFontFacesScenario(t *testing.T) {
	faces := ParseFontFaces(`@font-face{font-family:"Test";src:url('https://site/up/kit/f.woff2') format("woff2");}`)
	require.Len(t, faces, 1)
	assert.Equal(t, "Test", faces[0].Family)
	assert.Equal(t, "normal", faces[0].Weight)
	assert.Equal(t, "normal", faces[0].Style)
	assert.Equal(t, `url('https://site/up/kit/f.woff2') format("woff2")`, faces[0].Src)
}

func TestParseFontFacesEmpty(t *testing.T) {
	assert.Empty(t, ParseFontFaces(""))
	assert.Empty(t, ParseFontFaces("body{font-family:Arial}"))
	assert.Empty(t, ParseFontFaces("@font-face{}"))
}

func TestParseSourcesEmpty(t *testing.T) {
	assert.Nil(t, ParseSources(""))
	assert.Nil(t, ParseSources("   "))
}

func TestRewriteURLs(t *testing.T) {
	base := "https://site/up/kit"
	tests := []struct {
		in   string
		want string
	}{
		{"url('https://example.com/a.woff')", "url('https://example.com/a.woff')"},
		{"url('data:font/woff;base64,AAAA')", "url('data:font/woff;base64,AAAA')"},
		{"url(//cdn.example.com/a.woff)", "url(//cdn.example.com/a.woff)"},
		{"url(http://example.com/a.woff)", "url(http://example.com/a.woff)"},
		{"url('fonts/a.woff')", "url('https://site/up/kit/fonts/a.woff')"},
		{"url(\"fonts/a.woff?v=2#iefix\")", "url('https://site/up/kit/fonts/a.woff?v=2#iefix')"},
		{"url( /a.woff )", "url('https://site/up/kit/a.woff')"},
		{"url(../a.woff)", "url('https://site/up/kit/../a.woff')"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RewriteURLs(tt.in, base), "input %q", tt.in)
	}

	assert.Equal(t, "url('https://site/up/kit/a.woff')", RewriteURLs("url(a.woff)", base+"/"))
}

func TestRewriteThenSanitizeKeepsKitURLs(t *testing.T) {
	in := `@import url(other.css);@font-face{font-family:A;src:url(a.woff2) format("woff2"),url(javascript:x)}`
	out := Sanitize(RewriteURLs(in, "https://site/up/kit"))
	assert.NotContains(t, out, "@import")
	assert.NotContains(t, out, "javascript")
	assert.Contains(t, out, "url('https://site/up/kit/a.woff2')")
}
