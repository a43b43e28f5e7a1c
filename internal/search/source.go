package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kayz/kidsearch/internal/config"
	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/metrics"
	"github.com/kayz/kidsearch/internal/security"
)

const DefaultSourceTimeout = 8 * time.Second

// Source wraps a protocol with the failure policy every secondary source
// shares: a timeout, a circuit breaker, and degradation to an empty list.
type Source struct {
	cfg      config.SourceConfig
	protocol Protocol
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	enabled  atomic.Bool
}

func NewSource(cfg config.SourceConfig, client *http.Client, timeout time.Duration) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	protocol, err := newProtocol(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
	}
	return newSource(cfg, protocol, timeout), nil
}

func newSource(cfg config.SourceConfig, protocol Protocol, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	s := &Source{
		cfg:      cfg,
		protocol: protocol,
		timeout:  timeout,
	}
	s.enabled.Store(cfg.Enabled)
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.ID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the backend's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[Search] source %s breaker %s -> %s", name, from, to)
		},
	})
	return s
}

func (s *Source) ID() string { return s.cfg.ID }

func (s *Source) Name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	return s.cfg.ID
}

func (s *Source) Type() string         { return s.cfg.Type }
func (s *Source) Weight() float64      { return s.cfg.EffectiveWeight() }
func (s *Source) Enabled() bool        { return s.enabled.Load() }
func (s *Source) SetEnabled(on bool)   { s.enabled.Store(on) }
func (s *Source) BreakerState() string { return s.breaker.State().String() }

// SupportsWeb reports web capability from config.
func (s *Source) SupportsWeb() bool { return s.cfg.WebSupported() }

// SupportsImages requires both the config flag and a protocol that can do it.
func (s *Source) SupportsImages() bool {
	if !s.cfg.SupportsImages {
		return false
	}
	_, ok := s.protocol.(ImageSearcher)
	return ok
}

func (s *Source) Supports(kind Kind) bool {
	if kind == KindImages {
		return s.SupportsImages()
	}
	return s.SupportsWeb()
}

// PrimaryExclusions lists domains the primary source should skip.
func (s *Source) PrimaryExclusions() []string { return s.cfg.PrimaryExclusions() }

// Search never fails: errors are logged and yield an empty slice.
func (s *Source) Search(ctx context.Context, query, lang string, limit int) []Result {
	return s.search(ctx, KindWeb, query, lang, limit)
}

func (s *Source) SearchImages(ctx context.Context, query, lang string, limit int) []Result {
	return s.search(ctx, KindImages, query, lang, limit)
}

func (s *Source) search(ctx context.Context, kind Kind, query, lang string, limit int) []Result {
	if !s.Enabled() || !s.Supports(kind) {
		return []Result{}
	}
	if limit <= 0 {
		limit = s.cfg.Limit()
	}
	q := Query{Text: query, Lang: lang, Limit: limit}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	metrics.SourceRequests.WithLabelValues(s.cfg.ID, string(kind)).Inc()
	start := time.Now()
	out, err := s.breaker.Execute(func() (res interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if kind == KindImages {
			return s.protocol.(ImageSearcher).ImageSearch(ctx, q)
		}
		return s.protocol.WebSearch(ctx, q)
	})
	metrics.SourceLatency.WithLabelValues(s.cfg.ID).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SourceFailures.WithLabelValues(s.cfg.ID, string(kind)).Inc()
		logger.Warn("[Search] source %s %s search for %q failed: %v", s.cfg.ID, kind, query, err)
		return []Result{}
	}

	results, _ := out.([]Result)
	logger.Debug("[Search] source %s returned %d %s results in %v", s.cfg.ID, len(results), kind, time.Since(start))
	return s.stamp(results)
}

// stamp attributes results to this source and drops unusable links.
func (s *Source) stamp(results []Result) []Result {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if err := security.ValidateResultLink(r.Link); err != nil {
			logger.Debug("[Search] source %s: dropping result %q: %v", s.cfg.ID, r.Title, err)
			continue
		}
		r.SourceName = s.Name()
		r.SourceWeight = s.Weight()
		if r.DisplayHost == "" {
			r.DisplayHost = security.DisplayHost(r.Link)
		}
		kept = append(kept, r)
	}
	return kept
}
