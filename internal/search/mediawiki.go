package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/security"
)

type mediaWikiOptions struct {
	ArticlePath     string            `mapstructure:"article_path"`
	FetchThumbnails bool              `mapstructure:"fetch_thumbnails"`
	ThumbnailSize   int               `mapstructure:"thumbnail_size"`
	SearchParams    map[string]string `mapstructure:"search_params"`
	ImageSearch     struct {
		ExcludeCategories []string `mapstructure:"exclude_categories"`
	} `mapstructure:"image_search"`
}

// MediaWikiProtocol searches wikis exposing the MediaWiki action API.
type MediaWikiProtocol struct {
	apiURL  string
	baseURL string
	opts    mediaWikiOptions
	client  *http.Client
}

func NewMediaWikiProtocol(cfg config.SourceConfig, client *http.Client) (Protocol, error) {
	p := &MediaWikiProtocol{
		apiURL:  cfg.APIURL,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
	if err := decodeOptions(cfg.Options, &p.opts); err != nil {
		return nil, err
	}
	if p.opts.ArticlePath == "" {
		p.opts.ArticlePath = "/wiki/"
	}
	if p.opts.ThumbnailSize <= 0 {
		p.opts.ThumbnailSize = 200
	}
	return p, nil
}

type mwSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type mwPagesResponse struct {
	Query struct {
		Pages map[string]mwPage `json:"pages"`
	} `json:"query"`
}

type mwPage struct {
	PageID    int    `json:"pageid"`
	Title     string `json:"title"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ImageInfo []struct {
		URL            string `json:"url"`
		DescriptionURL string `json:"descriptionurl"`
		ThumbURL       string `json:"thumburl"`
		ThumbWidth     int    `json:"thumbwidth"`
		ThumbHeight    int    `json:"thumbheight"`
	} `json:"imageinfo"`
}

func (p *MediaWikiProtocol) endpoint(lang string, params url.Values) string {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("origin", "*")
	return expandLang(p.apiURL, lang) + "?" + params.Encode()
}

func (p *MediaWikiProtocol) WebSearch(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("list", "search")
	params.Set("srsearch", q.Text)
	params.Set("srprop", "snippet|titlesnippet")
	params.Set("srlimit", strconv.Itoa(q.Limit))
	for k, v := range p.opts.SearchParams {
		params.Set(k, v)
	}

	var sr mwSearchResponse
	if err := getJSON(ctx, p.client, p.endpoint(q.Lang, params), &sr); err != nil {
		return nil, fmt.Errorf("mediawiki search: %w", err)
	}
	hits := sr.Query.Search
	if len(hits) == 0 {
		return nil, nil
	}

	thumbs := map[string]string{}
	if p.opts.FetchThumbnails {
		titles := make([]string, len(hits))
		for i, h := range hits {
			titles[i] = h.Title
		}
		tp := url.Values{}
		tp.Set("prop", "pageimages")
		tp.Set("piprop", "thumbnail")
		tp.Set("pithumbsize", strconv.Itoa(p.opts.ThumbnailSize))
		tp.Set("titles", strings.Join(titles, "|"))

		var pr mwPagesResponse
		if err := getJSON(ctx, p.client, p.endpoint(q.Lang, tp), &pr); err != nil {
			// Thumbnails are decoration; keep the text results.
			thumbs = nil
		} else {
			for _, page := range pr.Query.Pages {
				if page.Thumbnail != nil && page.Thumbnail.Source != "" {
					thumbs[page.Title] = page.Thumbnail.Source
				}
			}
		}
	}

	base := expandLang(p.baseURL, q.Lang)
	host := security.DisplayHost(base)
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Title:         h.Title,
			Link:          base + p.opts.ArticlePath + ArticleSlug(h.Title),
			DisplayHost:   host,
			SnippetPlain:  PlainSnippet(h.Snippet),
			SnippetMarked: MarkedSnippet(h.Snippet),
			ThumbnailURL:  thumbs[h.Title],
		})
	}
	return results, nil
}

// ArticleSlug percent-encodes a wiki title with spaces turned into underscores.
func ArticleSlug(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (p *MediaWikiProtocol) ImageSearch(ctx context.Context, q Query) ([]Result, error) {
	text := q.Text
	for _, c := range p.opts.ImageSearch.ExcludeCategories {
		text += fmt.Sprintf(` -incategory:"%s"`, c)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("list", "search")
	params.Set("srsearch", text)
	params.Set("srnamespace", "6")
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srwhat", "text")

	var sr mwSearchResponse
	if err := getJSON(ctx, p.client, p.endpoint(q.Lang, params), &sr); err != nil {
		return nil, fmt.Errorf("mediawiki image search: %w", err)
	}
	if len(sr.Query.Search) == 0 {
		return nil, nil
	}

	titles := make([]string, len(sr.Query.Search))
	order := make(map[string]int, len(titles))
	for i, h := range sr.Query.Search {
		titles[i] = h.Title
		order[h.Title] = i
	}
	ip := url.Values{}
	ip.Set("prop", "imageinfo")
	ip.Set("iiprop", "url|size|extmetadata")
	ip.Set("iiurlwidth", strconv.Itoa(p.opts.ThumbnailSize))
	ip.Set("titles", strings.Join(titles, "|"))

	var pr mwPagesResponse
	if err := getJSON(ctx, p.client, p.endpoint(q.Lang, ip), &pr); err != nil {
		return nil, fmt.Errorf("mediawiki image info: %w", err)
	}

	// Pages come back keyed by page id; restore the search ranking.
	ranked := make([]*mwPage, len(titles))
	for _, page := range pr.Query.Pages {
		page := page
		if i, ok := order[page.Title]; ok && len(page.ImageInfo) > 0 {
			ranked[i] = &page
		}
	}

	host := security.DisplayHost(expandLang(p.baseURL, q.Lang))
	var results []Result
	for _, page := range ranked {
		if page == nil {
			continue
		}
		img := page.ImageInfo[0]
		results = append(results, Result{
			Title:        imageTitle(page.Title),
			Link:         img.URL,
			DisplayHost:  host,
			ThumbnailURL: img.ThumbURL,
			Image: &ImageInfo{
				ContextURL:   img.DescriptionURL,
				ThumbnailURL: img.ThumbURL,
				Width:        img.ThumbWidth,
				Height:       img.ThumbHeight,
			},
		})
	}
	return results, nil
}

// imageTitle turns "File:Big T-rex.jpg" into "Big T-rex". The namespace
// prefix is localized ("Fichier:", "Datei:"), so everything up to the first
// colon goes.
func imageTitle(t string) string {
	if _, name, ok := strings.Cut(t, ":"); ok {
		t = name
	}
	return strings.TrimSuffix(t, path.Ext(t))
}
