package search

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kayz/kidsearch/internal/cache"
	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/knowledge"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/metrics"
)

// ResultCache is the cache the engine reads and fills.
type ResultCache = cache.Cache[AggregatedResponse]

// PanelFinder supplies the knowledge panel for a query.
type PanelFinder interface {
	Lookup(ctx context.Context, query, lang string) (*knowledge.Panel, error)
}

type Request struct {
	Query string
	Kind  Kind
	Page  int
	Sort  string
	Lang  string
}

type Options struct {
	// Primary is nil when the metered source is not configured.
	Primary       *PrimaryClient
	Registry      *Registry
	WebCache      *ResultCache
	ImageCache    *ResultCache
	Knowledge     PanelFinder
	DefaultLang   string
	MaxPages      int
	FanoutTimeout time.Duration
}

// Engine runs one aggregated search: cache lookup, primary and secondary
// fan-out, ranking, and degradation when the primary fails.
type Engine struct {
	primary       *PrimaryClient
	registry      *Registry
	webCache      *ResultCache
	imageCache    *ResultCache
	knowledge     PanelFinder
	defaultLang   string
	maxPages      int
	fanoutTimeout time.Duration
	group         singleflight.Group
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		primary:       opts.Primary,
		registry:      opts.Registry,
		webCache:      opts.WebCache,
		imageCache:    opts.ImageCache,
		knowledge:     opts.Knowledge,
		defaultLang:   opts.DefaultLang,
		maxPages:      opts.MaxPages,
		fanoutTimeout: opts.FanoutTimeout,
	}
	if e.registry == nil {
		e.registry = NewRegistryFromSources(0)
	}
	if e.webCache == nil {
		e.webCache = cache.New[AggregatedResponse](cache.Options{Kind: string(KindWeb), Capacity: 200})
	}
	if e.imageCache == nil {
		e.imageCache = cache.New[AggregatedResponse](cache.Options{Kind: string(KindImages), Capacity: 100})
	}
	if e.defaultLang == "" {
		e.defaultLang = "fr"
	}
	if e.maxPages <= 0 {
		e.maxPages = DefaultMaxPages
	}
	if e.fanoutTimeout <= 0 {
		e.fanoutTimeout = DefaultFanoutTimeout
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Cache(kind Kind) *ResultCache {
	if kind == KindImages {
		return e.imageCache
	}
	return e.webCache
}

// ClearCaches empties both result caches.
func (e *Engine) ClearCaches() {
	e.webCache.Clear()
	e.imageCache.Clear()
}

// ApplyConfig picks up the reloadable settings: source toggles and the image
// cache switch. Other changes need a restart.
func (e *Engine) ApplyConfig(next *config.Config) {
	e.registry.ApplyConfig(next.Sources)
	switch {
	case next.Cache.ImageEnabled && !e.imageCache.Enabled():
		e.imageCache.Enable()
		logger.Info("[Search] image cache enabled")
	case !next.Cache.ImageEnabled && e.imageCache.Enabled():
		e.imageCache.Disable()
		logger.Info("[Search] image cache disabled")
	}
}

func (e *Engine) CacheStats() []cache.Stats {
	return []cache.Stats{e.webCache.Stats(), e.imageCache.Stats()}
}

func (e *Engine) pageSize() int {
	if e.primary != nil {
		return e.primary.PageSize()
	}
	return DefaultPageSize
}

// Search answers one request. ErrAllSourcesFailed is returned only when the
// primary failed and nothing else produced a result.
func (e *Engine) Search(ctx context.Context, req Request) (*AggregatedResponse, error) {
	query := CleanQuery(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if req.Kind == "" {
		req.Kind = KindWeb
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Page > e.maxPages {
		return nil, fmt.Errorf("%w: %d > %d", ErrPageOutOfRange, req.Page, e.maxPages)
	}
	req.Query = query

	langHint := req.Lang
	if langHint == "" {
		langHint = DetectLang(query)
	}

	c := e.Cache(req.Kind)
	signature := e.registry.ConfigSignature(req.Kind)
	if langHint != "" {
		// The language picks the wiki endpoint, the panel and lr=.
		signature += "-" + langHint
	}
	key := cache.Key(string(req.Kind), query, req.Page, req.Sort, signature)
	if resp, ok := c.Get(key); ok {
		logger.Debug("[Search] cache hit %s", key)
		resp.FromCache = true
		resp.Items = slices.Clone(resp.Items)
		metrics.Searches.WithLabelValues(string(req.Kind), "cached").Inc()
		return &resp, nil
	}

	// The shared flight outlives any single caller; each caller stops
	// waiting when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		// A flight for this key may have filled the cache since the check above.
		if resp, ok := c.Get(key); ok {
			resp.FromCache = true
			return &resp, nil
		}
		resp, err := e.fetch(flightCtx, req, langHint)
		if err == nil && !resp.Degraded {
			c.Set(key, *resp)
		}
		return resp, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		logger.Trace("[Search] collapsed concurrent miss for %s", key)
	}
	resp := *res.Val.(*AggregatedResponse)
	resp.Items = slices.Clone(resp.Items)
	return &resp, nil
}

func (e *Engine) fetch(ctx context.Context, req Request, langHint string) (*AggregatedResponse, error) {
	start := time.Now()
	lang := langHint
	if lang == "" {
		lang = e.defaultLang
	}

	fanCtx, cancel := context.WithTimeout(ctx, e.fanoutTimeout)
	defer cancel()

	var (
		primary    *PrimaryResponse
		primaryErr error
		secondary  [][]Result
		panel      *knowledge.Panel
		g          errgroup.Group
	)

	if e.primary != nil {
		g.Go(func() error {
			primary, primaryErr = e.primary.Search(fanCtx, PrimaryRequest{
				Query:      req.Query,
				Kind:       req.Kind,
				Page:       req.Page,
				Sort:       req.Sort,
				Lang:       langHint,
				Exclusions: e.registry.ExcludedDomains(req.Kind),
			})
			return nil
		})
	}
	// Secondary sources have no pagination; they only contribute to page 1.
	if req.Page == 1 {
		g.Go(func() error {
			secondary = e.registry.SearchAll(fanCtx, req.Query, lang, req.Kind, 0)
			return nil
		})
		if req.Kind == KindWeb && e.knowledge != nil {
			g.Go(func() error {
				var err error
				if panel, err = e.knowledge.Lookup(fanCtx, req.Query, lang); err != nil {
					logger.Debug("[Search] knowledge panel skipped: %v", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	var primaryItems []Result
	if primaryErr != nil {
		logger.Warn("[Search] primary failed for %q: %v", req.Query, primaryErr)
	} else if primary != nil {
		primaryItems = primary.Items
	}

	ranked := Merge(primaryItems, secondary, req.Query, req.Kind)
	items := make([]Result, len(ranked))
	for i, r := range ranked {
		items[i] = r.Result
	}

	if primaryErr != nil && len(items) == 0 {
		metrics.Searches.WithLabelValues(string(req.Kind), "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrAllSourcesFailed, primaryErr)
	}

	resp := &AggregatedResponse{
		Query:            req.Query,
		Kind:             req.Kind,
		Page:             req.Page,
		Items:            items,
		TotalEstimate:    int64(len(items)),
		PrimaryItemCount: len(primaryItems),
		HasMorePages:     len(primaryItems) >= e.pageSize() && req.Page < e.maxPages,
		SearchTime:       time.Since(start).Seconds(),
		Degraded:         primaryErr != nil,
		KnowledgePanel:   panel,
	}
	if primary != nil && primaryErr == nil {
		if primary.TotalResults > 0 {
			resp.TotalEstimate = primary.TotalResults
		}
		if primary.SearchTime > 0 {
			resp.SearchTime = primary.SearchTime
		}
	}

	outcome := "ok"
	switch {
	case resp.Degraded:
		outcome = "degraded"
	case len(items) == 0:
		outcome = "empty"
	}
	metrics.Searches.WithLabelValues(string(req.Kind), outcome).Inc()
	logger.Info("[Search] %s %q page %d: %d results (%d primary, degraded=%v) in %.2fs",
		req.Kind, req.Query, req.Page, len(items), len(primaryItems), resp.Degraded, time.Since(start).Seconds())
	return resp, nil
}
