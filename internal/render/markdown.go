package render

import (
	"fmt"
	"strings"

	"github.com/kayz/kidsearch/internal/search"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

// NoResults is the empty state with spelling and phrasing suggestions.
func NoResults(query string, kind search.Kind, lang string) string {
	m := MessagesFor(lang)
	head := m.NoResults
	if kind == search.KindImages {
		head = m.NoImages
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n\n", head, mdEscaper.Replace(query))
	for _, s := range m.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String()
}

// Markdown renders a response as a markdown document.
func Markdown(resp *search.AggregatedResponse, lang string) string {
	if resp == nil || len(resp.Items) == 0 {
		query, kind := "", search.KindWeb
		if resp != nil {
			query, kind = resp.Query, resp.Kind
		}
		return NoResults(query, kind, lang)
	}
	m := MessagesFor(lang)

	var b strings.Builder
	if p := resp.KnowledgePanel; p != nil {
		fmt.Fprintf(&b, "> **%s**\n>\n> %s\n>\n> %s [%s](%s)\n\n",
			mdEscaper.Replace(p.Title), mdEscaper.Replace(p.Extract), m.ReadMore, p.Source, p.URL)
	}

	if resp.TotalEstimate > 0 {
		fmt.Fprintf(&b, "*%s %d %s (%.2fs)*\n\n", m.About, resp.TotalEstimate, m.Results, resp.SearchTime)
	}
	if resp.Degraded {
		fmt.Fprintf(&b, "*%s*\n\n", m.Degraded)
	}

	for i, item := range resp.Items {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, mdEscaper.Replace(item.Title), item.Link)
		if item.SourceName != "" {
			fmt.Fprintf(&b, " · %s", item.SourceName)
		}
		b.WriteString("\n")
		if item.DisplayHost != "" {
			fmt.Fprintf(&b, "   `%s`\n", item.DisplayHost)
		}
		if item.SnippetPlain != "" {
			fmt.Fprintf(&b, "   %s\n", mdEscaper.Replace(item.SnippetPlain))
		}
		if item.Image != nil && item.Image.Width > 0 {
			fmt.Fprintf(&b, "   %dx%d\n", item.Image.Width, item.Image.Height)
		}
		b.WriteString("\n")
	}

	if resp.HasMorePages {
		fmt.Fprintf(&b, "*%s %d →*\n", m.Page, resp.Page+1)
	}
	return b.String()
}

// Text is a compact plain-text rendering for tool output.
func Text(resp *search.AggregatedResponse, lang string) string {
	if resp == nil || len(resp.Items) == 0 {
		query, kind := "", search.KindWeb
		if resp != nil {
			query, kind = resp.Query, resp.Kind
		}
		return strings.NewReplacer("**", "").Replace(NoResults(query, kind, lang))
	}

	var b strings.Builder
	if p := resp.KnowledgePanel; p != nil {
		fmt.Fprintf(&b, "%s (%s): %s\n%s\n\n", p.Title, p.Source, p.Extract, p.URL)
	}
	for i, item := range resp.Items {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, item.Title, item.Link)
		if item.SnippetPlain != "" {
			fmt.Fprintf(&b, "   %s\n", item.SnippetPlain)
		}
	}
	if resp.Degraded {
		fmt.Fprintf(&b, "\n%s\n", MessagesFor(lang).Degraded)
	}
	return b.String()
}
