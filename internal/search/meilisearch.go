package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/security"
)

const (
	highlightPre  = `<span class="searchmatch">`
	highlightPost = `</span>`
)

type meiliOptions struct {
	IndexName             string   `mapstructure:"index_name"`
	Filter                string   `mapstructure:"filter"`
	AttributesToRetrieve  []string `mapstructure:"attributes_to_retrieve"`
	AttributesToHighlight []string `mapstructure:"attributes_to_highlight"`
	AttributesToCrop      []string `mapstructure:"attributes_to_crop"`
	CropLength            int      `mapstructure:"crop_length"`
	MatchingStrategy      string   `mapstructure:"matching_strategy"`
	SemanticSearch        struct {
		Enabled       bool    `mapstructure:"enabled"`
		SemanticRatio float64 `mapstructure:"semantic_ratio"`
		Embedder      string  `mapstructure:"embedder"`
	} `mapstructure:"semantic_search"`
}

// MeiliSearchProtocol queries one Meilisearch index.
type MeiliSearchProtocol struct {
	apiURL string
	apiKey string
	opts   meiliOptions
	client *http.Client
}

func NewMeiliSearchProtocol(cfg config.SourceConfig, client *http.Client) (Protocol, error) {
	p := &MeiliSearchProtocol{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		client: client,
	}
	if err := decodeOptions(cfg.Options, &p.opts); err != nil {
		return nil, err
	}
	if p.opts.IndexName == "" {
		return nil, fmt.Errorf("meilisearch source %s: options.index_name is required", cfg.ID)
	}
	if len(p.opts.AttributesToRetrieve) == 0 {
		p.opts.AttributesToRetrieve = []string{"*", "_formatted"}
	}
	if len(p.opts.AttributesToHighlight) == 0 {
		p.opts.AttributesToHighlight = []string{"title", "content"}
	}
	if len(p.opts.AttributesToCrop) == 0 {
		p.opts.AttributesToCrop = []string{"content"}
	}
	if p.opts.CropLength <= 0 {
		p.opts.CropLength = 30
	}
	if p.opts.MatchingStrategy == "" {
		p.opts.MatchingStrategy = "last"
	}
	if p.opts.SemanticSearch.SemanticRatio <= 0 {
		p.opts.SemanticSearch.SemanticRatio = 0.75
	}
	if p.opts.SemanticSearch.Embedder == "" {
		p.opts.SemanticSearch.Embedder = "default"
	}
	return p, nil
}

type meiliHybrid struct {
	SemanticRatio float64 `json:"semanticRatio"`
	Embedder      string  `json:"embedder"`
}

type meiliRequest struct {
	Q                     string       `json:"q"`
	Limit                 int          `json:"limit"`
	AttributesToRetrieve  []string     `json:"attributesToRetrieve,omitempty"`
	AttributesToHighlight []string     `json:"attributesToHighlight,omitempty"`
	AttributesToCrop      []string     `json:"attributesToCrop,omitempty"`
	CropLength            int          `json:"cropLength,omitempty"`
	CropMarker            string       `json:"cropMarker,omitempty"`
	HighlightPreTag       string       `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string       `json:"highlightPostTag,omitempty"`
	MatchingStrategy      string       `json:"matchingStrategy,omitempty"`
	Filter                string       `json:"filter,omitempty"`
	Hybrid                *meiliHybrid `json:"hybrid,omitempty"`
}

type meiliImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type meiliHit struct {
	Title     string       `json:"title"`
	URL       string       `json:"url"`
	Content   string       `json:"content"`
	Images    []meiliImage `json:"images"`
	Formatted *struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Excerpt string `json:"excerpt"`
	} `json:"_formatted"`
}

type meiliResponse struct {
	Hits []meiliHit `json:"hits"`
}

func (p *MeiliSearchProtocol) search(ctx context.Context, payload meiliRequest) ([]meiliHit, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/indexes/%s/search", p.apiURL, p.opts.IndexName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	raw, err := doRequest(p.client, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch: %w", err)
	}
	var resp meiliResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("meilisearch: failed to parse response: %w", err)
	}
	return resp.Hits, nil
}

func (p *MeiliSearchProtocol) WebSearch(ctx context.Context, q Query) ([]Result, error) {
	payload := meiliRequest{
		Q:                     q.Text,
		Limit:                 q.Limit,
		AttributesToRetrieve:  p.opts.AttributesToRetrieve,
		AttributesToHighlight: p.opts.AttributesToHighlight,
		AttributesToCrop:      p.opts.AttributesToCrop,
		CropLength:            p.opts.CropLength,
		CropMarker:            "...",
		HighlightPreTag:       highlightPre,
		HighlightPostTag:      highlightPost,
		MatchingStrategy:      p.opts.MatchingStrategy,
	}
	if p.opts.Filter != "" {
		payload.Filter = expandLang(p.opts.Filter, q.Lang)
	}
	if p.opts.SemanticSearch.Enabled {
		payload.Hybrid = &meiliHybrid{
			SemanticRatio: p.opts.SemanticSearch.SemanticRatio,
			Embedder:      p.opts.SemanticSearch.Embedder,
		}
	}

	hits, err := p.search(ctx, payload)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		title, content := h.Title, h.Content
		if f := h.Formatted; f != nil {
			if f.Title != "" {
				title = f.Title
			}
			switch {
			case f.Content != "":
				content = f.Content
			case f.Excerpt != "":
				content = f.Excerpt
			}
		}
		r := Result{
			Title:         PlainSnippet(title),
			Link:          h.URL,
			DisplayHost:   security.DisplayHost(h.URL),
			SnippetPlain:  PlainSnippet(content),
			SnippetMarked: MarkedSnippet(content),
		}
		if len(h.Images) > 0 {
			r.ThumbnailURL = h.Images[0].URL
		}
		results = append(results, r)
	}
	return results, nil
}

func (p *MeiliSearchProtocol) ImageSearch(ctx context.Context, q Query) ([]Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	hits, err := p.search(ctx, meiliRequest{Q: q.Text, Limit: limit})
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, h := range hits {
		if len(h.Images) == 0 || h.Images[0].URL == "" {
			continue
		}
		img := h.Images[0]
		width, height := img.Width, img.Height
		if width == 0 {
			width = 400
		}
		if height == 0 {
			height = 300
		}
		results = append(results, Result{
			Title:        h.Title,
			Link:         img.URL,
			DisplayHost:  security.DisplayHost(h.URL),
			ThumbnailURL: img.URL,
			Image: &ImageInfo{
				ContextURL:   h.URL,
				ThumbnailURL: img.URL,
				Width:        width,
				Height:       height,
			},
		})
	}
	return results, nil
}
