package quota

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/persist"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func TestLastRequestOfTheDay(t *testing.T) {
	c := &clock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)}
	q := New(90, WithClock(c.Now))
	for i := 0; i < 89; i++ {
		q.RecordRequest()
	}

	assert.True(t, q.CanMakeRequest())
	assert.Equal(t, 1, q.Usage().Remaining)

	q.RecordRequest()
	assert.False(t, q.CanMakeRequest())
	assert.Equal(t, 0, q.Usage().Remaining)
}

func TestRemainingNeverNegative(t *testing.T) {
	q := New(2)
	for i := 0; i < 5; i++ {
		q.RecordRequest()
	}
	assert.Equal(t, 0, q.Usage().Remaining)
	assert.Equal(t, 5, q.Usage().Used)
}

func TestResetsOnNewDay(t *testing.T) {
	c := &clock{t: time.Date(2026, 5, 10, 23, 59, 0, 0, time.Local)}
	q := New(3, WithClock(c.Now))
	q.RecordRequest()
	q.RecordRequest()
	q.RecordRequest()
	require.False(t, q.CanMakeRequest())

	c.t = c.t.Add(2 * time.Minute)
	assert.True(t, q.CanMakeRequest())
	st := q.Usage()
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, 3, st.Remaining)
	assert.Equal(t, "2026-05-11", st.ResetDate)
}

func TestDefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultDailyLimit, New(0).Usage().Limit)
}

func TestPersistedCounter(t *testing.T) {
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "kidsearch.db"))
	require.NoError(t, err)
	defer store.Close()

	c := &clock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)}
	first := New(10, WithClock(c.Now), WithStore(store))
	first.RecordRequest()
	first.RecordRequest()

	second := New(10, WithClock(c.Now), WithStore(store))
	assert.Equal(t, 8, second.Usage().Remaining)

	c.t = c.t.Add(24 * time.Hour)
	third := New(10, WithClock(c.Now), WithStore(store))
	assert.Equal(t, 10, third.Usage().Remaining, "counter from a previous day is ignored")
}

func TestReset(t *testing.T) {
	q := New(5)
	q.RecordRequest()
	q.RecordRequest()
	q.Reset()
	assert.Equal(t, 5, q.Usage().Remaining)
}

func TestDayUsesConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	c := &clock{t: time.Date(2026, 5, 10, 16, 0, 0, 0, time.UTC)}
	q := New(5, WithClock(c.Now), WithLocation(tokyo))
	assert.Equal(t, "2026-05-11", q.Usage().ResetDate)
}
