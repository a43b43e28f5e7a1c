// Package cache implements the bounded, time-expiring result cache.
//
// Entries are evicted in insertion order (FIFO) once capacity is reached and
// are treated as absent after their TTL. A cache may optionally write through
// to a SQLite store so results survive restarts within the same bounds.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/metrics"
	"github.com/kayz/kidsearch/internal/persist"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Key is the only place cache keys are built, so Get and Set always agree.
func Key(kind, query string, page int, sort, signature string) string {
	if signature == "" {
		signature = "default"
	}
	return fmt.Sprintf("%s:%s:%d:%s:%s", kind, strings.ToLower(strings.TrimSpace(query)), page, sort, signature)
}

// Store is the optional write-through backing store.
type Store interface {
	PutCacheEntry(row persist.CacheRow) error
	DeleteCacheEntry(key string) error
	ClearCache(kind string) error
	LoadCacheEntries(kind string) ([]persist.CacheRow, error)
}

type Options struct {
	Kind     string
	Capacity int
	TTL      time.Duration
	Disabled bool
	Store    Store
	Now      func() time.Time
}

// Entry is a cached value with its insertion time.
type Entry[V any] struct {
	Data      V         `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	Kind    string `json:"kind"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
	Enabled bool   `json:"enabled"`
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

type Cache[V any] struct {
	kind     string
	capacity int
	ttl      time.Duration
	store    Store
	now      func() time.Time

	mu      sync.Mutex
	enabled bool
	order   *list.List
	index   map[string]*list.Element
}

func New[V any](opts Options) *Cache[V] {
	if opts.Capacity <= 0 {
		opts.Capacity = 200
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		kind:     opts.Kind,
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		store:    opts.Store,
		now:      opts.Now,
		enabled:  !opts.Disabled,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Load restores persisted entries. Expired or undecodable rows are deleted.
func (c *Cache[V]) Load() error {
	if c.store == nil {
		return nil
	}
	rows, err := c.store.LoadCacheEntries(c.kind)
	if err != nil {
		return fmt.Errorf("load %s cache: %w", c.kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, row := range rows {
		var data V
		if err := codec.Unmarshal(row.Data, &data); err != nil {
			logger.Warn("[Cache] dropping corrupt %s entry %q: %v", c.kind, row.Key, err)
			c.deleteStored(row.Key)
			continue
		}
		if now.Sub(row.CreatedAt) > c.ttl {
			c.deleteStored(row.Key)
			continue
		}
		c.insertLocked(row.Key, Entry[V]{Data: data, Timestamp: row.CreatedAt}, false)
	}
	c.updateGauge()
	logger.Debug("[Cache] restored %d %s entries", c.order.Len(), c.kind)
	return nil
}

// Get returns the cached value for key. Expired entries are removed lazily.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return zero, false
	}

	el, ok := c.index[key]
	if !ok {
		metrics.CacheLookups.WithLabelValues(c.kind, "miss").Inc()
		return zero, false
	}
	n := el.Value.(*node[V])
	if c.now().Sub(n.entry.Timestamp) > c.ttl {
		c.removeLocked(el)
		c.updateGauge()
		metrics.CacheLookups.WithLabelValues(c.kind, "miss").Inc()
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues(c.kind, "hit").Inc()
	return n.entry.Data, true
}

// Set stores value under key, evicting the oldest-inserted entry when full.
// Re-setting an existing key counts as a fresh insertion.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	c.insertLocked(key, Entry[V]{Data: value, Timestamp: c.now()}, true)
	c.updateGauge()
}

func (c *Cache[V]) insertLocked(key string, e Entry[V], persistIt bool) {
	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
	for c.order.Len() >= c.capacity {
		c.removeLocked(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&node[V]{key: key, entry: e})

	if persistIt && c.store != nil {
		data, err := codec.Marshal(e.Data)
		if err != nil {
			logger.Warn("[Cache] cannot encode %s entry %q: %v", c.kind, key, err)
			return
		}
		if err := c.store.PutCacheEntry(persist.CacheRow{Kind: c.kind, Key: key, Data: data, CreatedAt: e.Timestamp}); err != nil {
			logger.Warn("[Cache] persist %s entry failed: %v", c.kind, err)
		}
	}
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	n := c.order.Remove(el).(*node[V])
	delete(c.index, n.key)
	c.deleteStored(n.key)
}

func (c *Cache[V]) deleteStored(key string) {
	if c.store == nil {
		return
	}
	if err := c.store.DeleteCacheEntry(key); err != nil {
		logger.Warn("[Cache] delete %s entry failed: %v", c.kind, err)
	}
}

// Prune removes every expired entry and returns how many were dropped.
func (c *Cache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.Sub(el.Value.(*node[V]).entry.Timestamp) > c.ttl {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	c.updateGauge()
	return removed
}

// Clear empties the cache and its backing store.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[string]*list.Element)
	if c.store != nil {
		if err := c.store.ClearCache(c.kind); err != nil {
			logger.Warn("[Cache] clear %s store failed: %v", c.kind, err)
		}
	}
	c.updateGauge()
}

func (c *Cache[V]) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
}

// Disable turns the cache off and drops its contents.
func (c *Cache[V]) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
	c.Clear()
}

func (c *Cache[V]) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.order.Len()
	if !c.enabled {
		size = 0
	}
	return Stats{Kind: c.kind, Size: size, MaxSize: c.capacity, Enabled: c.enabled}
}

func (c *Cache[V]) updateGauge() {
	metrics.CacheEntries.WithLabelValues(c.kind).Set(float64(c.order.Len()))
}
