package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/logger"
)

const DefaultFanoutTimeout = 10 * time.Second

type RegistryOptions struct {
	Client        *http.Client
	SourceTimeout time.Duration
	// Deadline bounds a whole SearchAll call.
	Deadline time.Duration
}

// Registry holds the configured secondary sources in config order.
type Registry struct {
	mu       sync.RWMutex
	sources  []*Source
	deadline time.Duration
}

// NewRegistry builds a source for every valid config. Invalid entries are
// logged and left out rather than failing startup.
func NewRegistry(cfgs []config.SourceConfig, opts RegistryOptions) *Registry {
	r := &Registry{deadline: opts.Deadline}
	if r.deadline <= 0 {
		r.deadline = DefaultFanoutTimeout
	}

	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		if seen[c.ID] {
			logger.Warn("[Search] duplicate source id %q ignored", c.ID)
			continue
		}
		s, err := NewSource(c, opts.Client, opts.SourceTimeout)
		if err != nil {
			logger.Warn("[Search] source disabled: %v", err)
			continue
		}
		seen[c.ID] = true
		r.sources = append(r.sources, s)
	}
	return r
}

// NewRegistryFromSources is used when sources are built by hand.
func NewRegistryFromSources(deadline time.Duration, sources ...*Source) *Registry {
	if deadline <= 0 {
		deadline = DefaultFanoutTimeout
	}
	return &Registry{sources: sources, deadline: deadline}
}

// Sources returns every registered source, enabled or not.
func (r *Registry) Sources() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Source(nil), r.sources...)
}

func (r *Registry) Get(id string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// GetActive returns the enabled sources able to serve kind.
func (r *Registry) GetActive(kind Kind) []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Source
	for _, s := range r.sources {
		if s.Enabled() && s.Supports(kind) {
			active = append(active, s)
		}
	}
	return active
}

// ConfigSignature identifies the active source set for kind, so toggling a
// source partitions the cache instead of serving results built without it.
func (r *Registry) ConfigSignature(kind Kind) string {
	active := r.GetActive(kind)
	if len(active) == 0 {
		return "none"
	}
	ids := make([]string, len(active))
	for i, s := range active {
		ids[i] = s.ID()
	}
	sort.Strings(ids)

	h := fnv.New32a()
	h.Write([]byte(strings.Join(ids, "-")))
	return fmt.Sprintf("%d-%08x", len(ids), h.Sum32())
}

// SearchAll queries every active source concurrently and returns one list per
// source in registry order. It always waits for every source to settle.
func (r *Registry) SearchAll(ctx context.Context, query, lang string, kind Kind, limit int) [][]Result {
	active := r.GetActive(kind)
	if len(active) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	out := make([][]Result, len(active))
	var g errgroup.Group
	for i, s := range active {
		g.Go(func() error {
			if kind == KindImages {
				out[i] = s.SearchImages(ctx, query, lang, limit)
			} else {
				out[i] = s.Search(ctx, query, lang, limit)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SetEnabled toggles one source at runtime.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("unknown source: %s", id)
	}
	if s.Enabled() != enabled {
		logger.Info("[Search] source %s enabled=%v", id, enabled)
	}
	s.SetEnabled(enabled)
	return nil
}

// ApplyConfig applies a reloaded config. Only enabled flags of known sources
// change; anything else needs a restart.
func (r *Registry) ApplyConfig(cfgs []config.SourceConfig) {
	for _, c := range cfgs {
		if err := r.SetEnabled(c.ID, c.Enabled); err != nil {
			logger.Warn("[Search] reload: %v (restart to add sources)", err)
		}
	}
}

// ExcludedDomains lists the domains covered by active sources of kind, to be
// excluded from the primary query.
func (r *Registry) ExcludedDomains(kind Kind) []string {
	var domains []string
	seen := map[string]bool{}
	for _, s := range r.GetActive(kind) {
		for _, d := range s.PrimaryExclusions() {
			if d != "" && !seen[d] {
				seen[d] = true
				domains = append(domains, d)
			}
		}
	}
	return domains
}
