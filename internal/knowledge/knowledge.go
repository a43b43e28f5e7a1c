// Package knowledge looks up a short encyclopedia summary shown above web
// results for simple topical queries.
package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/logger"
)

// Panel is the summary card for a query.
type Panel struct {
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	Thumbnail string `json:"thumbnail,omitempty"`
	URL       string `json:"url"`
	Source    string `json:"source"`
}

// Queries longer than three words only get a panel when they mention one of these.
var educationalKeywords = []string{
	"animal", "dinosaure", "planète", "pays", "histoire", "science",
	"géographie", "biologie", "chimie", "physique", "mathématiques",
	"littérature", "art", "musique", "sport", "nature", "corps humain",
	"système solaire", "océan", "montagne", "forêt", "climat",
	"dinosaur", "planet", "country", "history", "geography", "biology",
	"chemistry", "physics", "math", "literature", "music", "ocean",
	"mountain", "forest", "climate", "solar system", "human body",
}

type Finder struct {
	cfg    config.KnowledgePanelConfig
	client *http.Client
}

func NewFinder(cfg config.KnowledgePanelConfig, client *http.Client) *Finder {
	if cfg.ExtractLength <= 0 {
		cfg.ExtractLength = 400
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 300
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Finder{cfg: cfg, client: client}
}

// Eligible reports whether a query is simple enough to deserve a panel.
func Eligible(query string) bool {
	if utf8.RuneCountInString(query) < 3 || strings.Contains(query, `"`) || strings.Contains(query, "site:") {
		return false
	}
	if len(strings.Fields(query)) <= 3 {
		return true
	}
	lower := strings.ToLower(query)
	for _, k := range educationalKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Variants lists the title spellings tried in order, without duplicates.
func Variants(query string) []string {
	lang := language.Und
	candidates := []string{
		query,
		capitalize(query),
		strings.ToLower(query),
		strings.TrimSuffix(query, "s"),
		query + "s",
		cases.Title(lang, cases.NoLower).String(query),
	}
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Lookup returns the first variant with an extract, or nil when none match.
// Lookup failures are logged and never returned; only cancellation is.
func (f *Finder) Lookup(ctx context.Context, query, lang string) (*Panel, error) {
	query = strings.TrimSpace(query)
	if !Eligible(query) {
		return nil, nil
	}
	for _, v := range Variants(query) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		panel, err := f.fetch(ctx, v, lang)
		if err != nil {
			logger.Debug("[Knowledge] lookup %q failed: %v", v, err)
			continue
		}
		if panel != nil {
			return panel, nil
		}
	}
	return nil, nil
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string  `json:"title"`
			Extract   string  `json:"extract"`
			Missing   *string `json:"missing"`
			Thumbnail *struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
		} `json:"pages"`
	} `json:"query"`
}

func (f *Finder) fetch(ctx context.Context, title, lang string) (*Panel, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("titles", title)
	params.Set("prop", "extracts|pageimages")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exsectionformat", "plain")
	params.Set("piprop", "thumbnail")
	params.Set("pithumbsize", strconv.Itoa(f.cfg.ThumbnailSize))
	params.Set("origin", "*")

	endpoint := strings.ReplaceAll(f.cfg.APIURL, "{lang}", lang) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var data extractResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	for _, page := range data.Query.Pages {
		if page.Missing != nil || page.Extract == "" {
			continue
		}
		p := &Panel{
			Title:   page.Title,
			Extract: truncate(page.Extract, f.cfg.ExtractLength),
			URL:     strings.ReplaceAll(f.cfg.BaseURL, "{lang}", lang) + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_")),
			Source:  f.cfg.SourceName,
		}
		if page.Thumbnail != nil && !f.cfg.DisableThumbnails {
			p.Thumbnail = page.Thumbnail.Source
		}
		return p, nil
	}
	return nil, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
