package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/persist"
)

type payload struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestKeyNormalizesQuery(t *testing.T) {
	assert.Equal(t, "web:dinosaurs:1::none", Key("web", "  Dinosaurs ", 1, "", "none"))
	assert.Equal(t, Key("web", "cats", 1, "", "1-abc"), Key("web", "CATS", 1, "", "1-abc"))
	assert.NotEqual(t, Key("web", "cats", 1, "", "1-abc"), Key("web", "cats", 2, "", "1-abc"))
	assert.NotEqual(t, Key("web", "cats", 1, "", "1-abc"), Key("web", "cats", 1, "date", "1-abc"))
	assert.NotEqual(t, Key("web", "cats", 1, "", "1-abc"), Key("web", "cats", 1, "", "2-def"))
	assert.NotEqual(t, Key("web", "cats", 1, "", "none"), Key("images", "cats", 1, "", "none"))
}

func TestFIFOEviction(t *testing.T) {
	c := New[payload](Options{Kind: "web", Capacity: 2, TTL: time.Hour})

	c.Set("a", payload{Total: 1})
	c.Set("b", payload{Total: 2})
	c.Set("c", payload{Total: 3})

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	got, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestReadsDoNotRefreshOrder(t *testing.T) {
	c := New[payload](Options{Kind: "web", Capacity: 2, TTL: time.Hour})
	c.Set("a", payload{Total: 1})
	c.Set("b", payload{Total: 2})

	_, _ = c.Get("a")
	c.Set("c", payload{Total: 3})

	_, ok := c.Get("a")
	assert.False(t, ok, "eviction is by insertion order, not recency of use")
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestResetExistingKeyDoesNotEvictOthers(t *testing.T) {
	c := New[payload](Options{Kind: "web", Capacity: 2, TTL: time.Hour})
	c.Set("a", payload{Total: 1})
	c.Set("b", payload{Total: 2})
	c.Set("a", payload{Total: 10})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got.Total)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	clock := newClock()
	c := New[payload](Options{Kind: "web", Capacity: 10, TTL: 7 * 24 * time.Hour, Now: clock.Now})

	c.Set("k", payload{Total: 1})
	clock.Advance(6 * 24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * 24 * time.Hour)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry older than ttl must be absent")
	assert.Equal(t, 0, c.Stats().Size, "expired entry removed on read")
}

func TestPrune(t *testing.T) {
	clock := newClock()
	c := New[payload](Options{Kind: "web", Capacity: 10, TTL: time.Hour, Now: clock.Now})

	c.Set("old", payload{})
	clock.Advance(45 * time.Minute)
	c.Set("new", payload{})
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, c.Prune())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestDisabledCache(t *testing.T) {
	c := New[payload](Options{Kind: "images", Capacity: 10, TTL: time.Hour})
	c.Set("k", payload{Total: 1})

	c.Disable()
	assert.False(t, c.Enabled())
	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Set("k2", payload{Total: 2})
	assert.Equal(t, 0, c.Stats().Size)

	c.Enable()
	_, ok = c.Get("k")
	assert.False(t, ok, "disable clears previous contents")
	c.Set("k3", payload{Total: 3})
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestStartsDisabled(t *testing.T) {
	c := New[payload](Options{Kind: "images", Disabled: true})
	c.Set("k", payload{})
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, Stats{Kind: "images", Size: 0, MaxSize: 200, Enabled: false}, c.Stats())
}

func TestClear(t *testing.T) {
	c := New[payload](Options{Kind: "web", Capacity: 10, TTL: time.Hour})
	c.Set("a", payload{})
	c.Set("b", payload{})
	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestPersistentCacheSurvivesRestart(t *testing.T) {
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	clock := newClock()
	first := New[payload](Options{Kind: "web", Capacity: 10, TTL: time.Hour, Store: store, Now: clock.Now})
	first.Set("web:cats:1::none", payload{Items: []string{"x", "y"}, Total: 2})
	first.Set("web:dogs:1::none", payload{Total: 1})

	second := New[payload](Options{Kind: "web", Capacity: 10, TTL: time.Hour, Store: store, Now: clock.Now})
	require.NoError(t, second.Load())

	got, ok := second.Get("web:cats:1::none")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, got.Items)
	assert.Equal(t, 2, second.Stats().Size)
}

func TestLoadSkipsExpiredAndCorruptRows(t *testing.T) {
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	clock := newClock()
	require.NoError(t, store.PutCacheEntry(persist.CacheRow{Kind: "web", Key: "stale", Data: []byte(`{"total":1}`), CreatedAt: clock.Now().Add(-2 * time.Hour)}))
	require.NoError(t, store.PutCacheEntry(persist.CacheRow{Kind: "web", Key: "broken", Data: []byte(`{not json`), CreatedAt: clock.Now()}))
	require.NoError(t, store.PutCacheEntry(persist.CacheRow{Kind: "web", Key: "fresh", Data: []byte(`{"total":3}`), CreatedAt: clock.Now()}))

	c := New[payload](Options{Kind: "web", Capacity: 10, TTL: time.Hour, Store: store, Now: clock.Now})
	require.NoError(t, c.Load())

	_, ok := c.Get("broken")
	assert.False(t, ok, "corrupt entry is treated as a miss")
	_, ok = c.Get("stale")
	assert.False(t, ok)
	got, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, 3, got.Total)

	rows, err := store.LoadCacheEntries("web")
	require.NoError(t, err)
	require.Len(t, rows, 1, "bad rows are deleted from the store")
	assert.Equal(t, "fresh", rows[0].Key)
}

func TestLoadRespectsCapacity(t *testing.T) {
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	clock := newClock()
	for i, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.PutCacheEntry(persist.CacheRow{Kind: "web", Key: k, Data: []byte(`{}`), CreatedAt: clock.Now().Add(time.Duration(i) * time.Second)}))
	}

	c := New[payload](Options{Kind: "web", Capacity: 2, TTL: time.Hour, Store: store, Now: clock.Now})
	require.NoError(t, c.Load())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}
