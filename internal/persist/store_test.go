package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheEntriesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.PutCacheEntry(CacheRow{Kind: "web", Key: "web:b", Data: []byte(`{"b":1}`), CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.PutCacheEntry(CacheRow{Kind: "web", Key: "web:a", Data: []byte(`{"a":1}`), CreatedAt: base}))
	require.NoError(t, s.PutCacheEntry(CacheRow{Kind: "images", Key: "images:a", Data: []byte(`{}`), CreatedAt: base}))

	rows, err := s.LoadCacheEntries("web")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "web:a", rows[0].Key, "oldest entry first")
	assert.Equal(t, []byte(`{"a":1}`), rows[0].Data)
	assert.True(t, rows[0].CreatedAt.Equal(base))

	require.NoError(t, s.PutCacheEntry(CacheRow{Kind: "web", Key: "web:a", Data: []byte(`{"a":2}`), CreatedAt: base.Add(2 * time.Second)}))
	rows, err = s.LoadCacheEntries("web")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "web:b", rows[0].Key, "replaced entry moves to the back")

	require.NoError(t, s.DeleteCacheEntry("web:b"))
	require.NoError(t, s.DeleteCacheEntry("web:missing"))
	require.NoError(t, s.ClearCache("images"))

	rows, err = s.LoadCacheEntries("images")
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = s.LoadCacheEntries("web")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQuotaState(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadQuota()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveQuota(QuotaState{Used: 3, ResetDate: "2026-10-16"}))
	require.NoError(t, s.SaveQuota(QuotaState{Used: 4, ResetDate: "2026-10-16"}))

	state, ok, err := s.LoadQuota()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, QuotaState{Used: 4, ResetDate: "2026-10-16"}, state)
}
