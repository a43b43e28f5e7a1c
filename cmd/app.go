package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kayz/kidsearch/internal/cache"
	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/knowledge"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/persist"
	"github.com/kayz/kidsearch/internal/quota"
	"github.com/kayz/kidsearch/internal/search"
)

// app holds everything a command needs to run searches.
type app struct {
	cfg    *config.Config
	store  *persist.Store
	quota  *quota.Tracker
	engine *search.Engine
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	client := &http.Client{Timeout: 30 * time.Second}

	if cfg.Cache.PersistPath != "" {
		path := expandPath(cfg.Cache.PersistPath)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		store, err := persist.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("open cache database: %w", err)
		}
		a.store = store
	}

	webCache := cache.New[search.AggregatedResponse](a.cacheOptions(string(search.KindWeb), cfg.Cache.WebSize, false))
	imageCache := cache.New[search.AggregatedResponse](a.cacheOptions(string(search.KindImages), cfg.Cache.ImageSize, !cfg.Cache.ImageEnabled))
	for _, c := range []*search.ResultCache{webCache, imageCache} {
		if err := c.Load(); err != nil {
			logger.Warn("[Cache] failed to restore %s cache: %v", c.Stats().Kind, err)
		}
	}

	var primary *search.PrimaryClient
	if cfg.Primary.Configured() {
		var opts []quota.Option
		if cfg.Quota.Persist && a.store != nil {
			opts = append(opts, quota.WithStore(a.store))
		}
		a.quota = quota.New(cfg.Primary.DailyLimit, opts...)
		primary = search.NewPrimaryClient(cfg.Primary, client, a.quota)
	} else {
		logger.Info("[Search] primary source not configured, using secondary sources only")
	}

	registry := search.NewRegistry(cfg.Sources, search.RegistryOptions{
		Client:        client,
		SourceTimeout: cfg.Search.SourceTimeout,
		Deadline:      cfg.Search.FanoutTimeout,
	})

	opts := search.Options{
		Primary:       primary,
		Registry:      registry,
		WebCache:      webCache,
		ImageCache:    imageCache,
		DefaultLang:   cfg.Search.DefaultLang,
		MaxPages:      cfg.Primary.MaxPages,
		FanoutTimeout: cfg.Search.FanoutTimeout,
	}
	if cfg.Features.KnowledgePanel {
		opts.Knowledge = knowledge.NewFinder(cfg.KnowledgePanel, client)
	}
	a.engine = search.NewEngine(opts)
	return a, nil
}

func (a *app) cacheOptions(kind string, capacity int, disabled bool) cache.Options {
	opts := cache.Options{
		Kind:     kind,
		Capacity: capacity,
		TTL:      a.cfg.Cache.TTL,
		Disabled: disabled,
	}
	if a.store != nil {
		opts.Store = a.store
	}
	return opts
}

// caches lists the result caches for the maintenance scheduler.
func (a *app) caches() []*search.ResultCache {
	return []*search.ResultCache{a.engine.Cache(search.KindWeb), a.engine.Cache(search.KindImages)}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("[Cache] failed to close database: %v", err)
		}
	}
}

// expandPath resolves a leading ~ against the executable directory, like
// the config file location.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		return filepath.Join(filepath.Dir(config.ConfigPath()), path[1:])
	}
	return path
}
