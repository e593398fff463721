package knowledge

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText reduces an HTML fragment to whitespace-normalised text. Input
// without markup is returned trimmed.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style, noscript").Remove()
	// Keep words in adjacent blocks apart
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, td, th, blockquote, pre").AppendHtml(" ")

	return strings.Join(strings.Fields(doc.Text()), " ")
}
