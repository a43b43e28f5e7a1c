package search

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Only search highlights and basic emphasis survive in marked snippets.
var snippetPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "em")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^searchmatch$`)).OnElements("span")
	return p
}()

var spaceRun = regexp.MustCompile(`\s+`)

// MarkedSnippet sanitizes highlighted HTML returned by a source.
func MarkedSnippet(html string) string {
	return strings.TrimSpace(snippetPolicy.Sanitize(html))
}

// PlainSnippet strips all markup and decodes entities.
func PlainSnippet(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.TrimSpace(spaceRun.ReplaceAllString(html, " "))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script,style").Remove()
	return strings.TrimSpace(spaceRun.ReplaceAllString(doc.Text(), " "))
}
