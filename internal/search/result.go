package search

import (
	"github.com/kayz/kidsearch/internal/knowledge"
)

// Kind selects web or image results.
type Kind string

const (
	KindWeb    Kind = "web"
	KindImages Kind = "images"
)

// ParseKind accepts "web", "images" and "image"; anything else is web.
func ParseKind(s string) Kind {
	switch s {
	case "images", "image":
		return KindImages
	}
	return KindWeb
}

// ImageInfo is only set on image results.
type ImageInfo struct {
	ContextURL   string `json:"context_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// Result is the normalized shape every source produces.
type Result struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	DisplayHost   string     `json:"display_host"`
	SnippetPlain  string     `json:"snippet"`
	SnippetMarked string     `json:"snippet_html,omitempty"`
	SourceName    string     `json:"source"`
	SourceWeight  float64    `json:"source_weight"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	Image         *ImageInfo `json:"image,omitempty"`
}

// RankedResult carries the transient ranking state of a merged result.
type RankedResult struct {
	Result
	OriginalIndex    int     `json:"-"`
	CalculatedWeight float64 `json:"-"`
}

// AggregatedResponse is what the engine returns and caches.
type AggregatedResponse struct {
	Query            string           `json:"query"`
	Kind             Kind             `json:"kind"`
	Page             int              `json:"page"`
	Items            []Result         `json:"items"`
	TotalEstimate    int64            `json:"total_estimate"`
	PrimaryItemCount int              `json:"primary_item_count"`
	HasMorePages     bool             `json:"has_more_pages"`
	SearchTime       float64          `json:"search_time"`
	Degraded         bool             `json:"degraded,omitempty"`
	FromCache        bool             `json:"from_cache,omitempty"`
	KnowledgePanel   *knowledge.Panel `json:"knowledge_panel,omitempty"`
}
