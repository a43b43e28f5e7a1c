package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/metrics"
	"github.com/kayz/kidsearch/internal/security"
)

const (
	PrimarySourceName = "Google"
	DefaultPageSize   = 10
	DefaultMaxPages   = 10
)

// QuotaRecorder counts metered calls.
type QuotaRecorder interface {
	CanMakeRequest() bool
	RecordRequest()
}

type PrimaryRequest struct {
	Query string
	Kind  Kind
	Page  int
	Sort  string
	// Lang is only sent for web searches and only when known.
	Lang       string
	Exclusions []string
}

type PrimaryResponse struct {
	Items        []Result
	TotalResults int64
	SearchTime   float64
}

// PrimaryClient calls the metered Custom Search JSON API.
type PrimaryClient struct {
	cfg        config.PrimaryConfig
	client     *http.Client
	quota      QuotaRecorder
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewPrimaryClient(cfg config.PrimaryConfig, client *http.Client, quota QuotaRecorder) *PrimaryClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Safe == "" {
		cfg.Safe = "active"
	}
	return &PrimaryClient{
		cfg:        cfg,
		client:     client,
		quota:      quota,
		maxRetries: 2,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
}

func (p *PrimaryClient) PageSize() int { return p.cfg.PageSize }

// BuildURL renders the request URL, including -site: exclusions.
func (p *PrimaryClient) BuildURL(req PrimaryRequest) string {
	q := req.Query
	for _, d := range req.Exclusions {
		q += " -site:" + d
	}
	page := max(req.Page, 1)

	params := url.Values{}
	params.Set("q", q)
	params.Set("key", p.cfg.APIKey)
	params.Set("cx", p.cfg.CSEID)
	params.Set("start", strconv.Itoa((page-1)*p.cfg.PageSize+1))
	params.Set("num", strconv.Itoa(p.cfg.PageSize))
	params.Set("safe", p.cfg.Safe)
	params.Set("filter", "1")
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if req.Kind == KindImages {
		params.Set("searchType", "image")
	} else if req.Lang != "" {
		params.Set("lr", "lang_"+req.Lang)
	}
	return p.cfg.Endpoint + "?" + params.Encode()
}

type cseItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
	Snippet     string `json:"snippet"`
	HTMLSnippet string `json:"htmlSnippet"`
	Pagemap     struct {
		CSEThumbnail []struct {
			Src string `json:"src"`
		} `json:"cse_thumbnail"`
	} `json:"pagemap"`
	Image *struct {
		ContextLink   string `json:"contextLink"`
		ThumbnailLink string `json:"thumbnailLink"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
	} `json:"image"`
}

type cseResponse struct {
	Items             []cseItem `json:"items"`
	SearchInformation struct {
		TotalResults string  `json:"totalResults"`
		SearchTime   float64 `json:"searchTime"`
	} `json:"searchInformation"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search performs one page request. Transient failures are retried; every
// HTTP attempt counts against the quota.
func (p *PrimaryClient) Search(ctx context.Context, req PrimaryRequest) (*PrimaryResponse, error) {
	if p.quota != nil && !p.quota.CanMakeRequest() {
		logger.Warn("[Search] primary daily quota exhausted, calling anyway")
	}
	endpoint := p.BuildURL(req)

	var parsed cseResponse
	op := func() error {
		if p.quota != nil {
			p.quota.RecordRequest()
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		body, err := doRequest(p.client, httpReq)
		if err != nil {
			metrics.PrimaryRequests.WithLabelValues("error").Inc()
			var se *StatusError
			if ctx.Err() != nil || (errors.As(err, &se) && !se.Temporary()) {
				return backoff.Permanent(err)
			}
			logger.Debug("[Search] primary attempt failed, may retry: %v", err)
			return err
		}

		parsed = cseResponse{}
		if err := json.Unmarshal(body, &parsed); err != nil {
			metrics.PrimaryRequests.WithLabelValues("error").Inc()
			return backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		if e := parsed.Error; e != nil {
			metrics.PrimaryRequests.WithLabelValues("error").Inc()
			err := fmt.Errorf("primary api error %d: %s", e.Code, e.Message)
			if e.Code >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		metrics.PrimaryRequests.WithLabelValues("ok").Inc()
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("primary search: %w", err)
	}

	resp := &PrimaryResponse{SearchTime: parsed.SearchInformation.SearchTime}
	if n, err := strconv.ParseInt(strings.TrimSpace(parsed.SearchInformation.TotalResults), 10, 64); err == nil {
		resp.TotalResults = n
	}
	for _, it := range parsed.Items {
		r := Result{
			Title:         it.Title,
			Link:          it.Link,
			DisplayHost:   it.DisplayLink,
			SnippetPlain:  PlainSnippet(it.Snippet),
			SnippetMarked: MarkedSnippet(it.HTMLSnippet),
			SourceName:    PrimarySourceName,
			SourceWeight:  1.0,
		}
		if r.DisplayHost == "" {
			r.DisplayHost = security.DisplayHost(it.Link)
		}
		if len(it.Pagemap.CSEThumbnail) > 0 {
			r.ThumbnailURL = it.Pagemap.CSEThumbnail[0].Src
		}
		if it.Image != nil {
			r.Image = &ImageInfo{
				ContextURL:   it.Image.ContextLink,
				ThumbnailURL: it.Image.ThumbnailLink,
				Width:        it.Image.Width,
				Height:       it.Image.Height,
			}
			r.ThumbnailURL = it.Image.ThumbnailLink
		}
		resp.Items = append(resp.Items, r)
	}
	return resp, nil
}
