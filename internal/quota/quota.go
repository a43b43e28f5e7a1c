// Package quota tracks the daily request budget of the metered primary source.
package quota

import (
	"sync"
	"time"

	"github.com/kayz/kidsearch/internal/logger"
	"github.com/kayz/kidsearch/internal/metrics"
	"github.com/kayz/kidsearch/internal/persist"
)

const DefaultDailyLimit = 90

const dateLayout = "2006-01-02"

// Store persists the counter between runs.
type Store interface {
	SaveQuota(state persist.QuotaState) error
	LoadQuota() (persist.QuotaState, bool, error)
}

// Usage is a snapshot of the quota.
type Usage struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetDate string `json:"reset_date"`
}

type Tracker struct {
	mu            sync.Mutex
	dailyLimit    int
	usageCount    int
	lastResetDate string
	now           func() time.Time
	loc           *time.Location
	store         Store
}

type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone that decides when a day starts.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// WithStore restores the counter from s and saves every change to it.
func WithStore(s Store) Option {
	return func(t *Tracker) { t.store = s }
}

func New(dailyLimit int, opts ...Option) *Tracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	t := &Tracker{dailyLimit: dailyLimit, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(t)
	}
	t.lastResetDate = t.today()

	if t.store != nil {
		state, ok, err := t.store.LoadQuota()
		switch {
		case err != nil:
			logger.Warn("[Quota] failed to load saved counter: %v", err)
		case ok && state.ResetDate == t.lastResetDate:
			t.usageCount = state.Used
		}
	}
	t.publish()
	return t
}

func (t *Tracker) today() string {
	return t.now().In(t.loc).Format(dateLayout)
}

// rollover resets the counter when the calendar day changed. Caller holds mu.
func (t *Tracker) rollover() {
	if today := t.today(); today != t.lastResetDate {
		logger.Info("[Quota] new day %s, resetting counter (was %d)", today, t.usageCount)
		t.usageCount = 0
		t.lastResetDate = today
		t.save()
	}
}

// CanMakeRequest reports whether at least one request remains today.
func (t *Tracker) CanMakeRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.usageCount < t.dailyLimit
}

// RecordRequest counts one primary request.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.usageCount++
	t.save()
	t.publish()
	if t.usageCount == t.dailyLimit {
		logger.Warn("[Quota] daily limit of %d reached", t.dailyLimit)
	}
}

// remaining never goes below zero.
func (t *Tracker) remaining() int {
	return max(0, t.dailyLimit-t.usageCount)
}

func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return Usage{
		Used:      t.usageCount,
		Limit:     t.dailyLimit,
		Remaining: t.remaining(),
		ResetDate: t.lastResetDate,
	}
}

// Refresh applies a pending day change immediately.
func (t *Tracker) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.publish()
}

// Reset zeroes today's counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usageCount = 0
	t.lastResetDate = t.today()
	t.save()
	t.publish()
}

func (t *Tracker) save() {
	if t.store == nil {
		return
	}
	if err := t.store.SaveQuota(persist.QuotaState{Used: t.usageCount, ResetDate: t.lastResetDate}); err != nil {
		logger.Warn("[Quota] failed to save counter: %v", err)
	}
}

func (t *Tracker) publish() {
	metrics.QuotaRemaining.Set(float64(t.remaining()))
}
