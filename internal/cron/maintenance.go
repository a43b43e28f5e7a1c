package cron

import (
	"context"
	"fmt"

	"github.com/kayz/kidsearch/internal/logger"
)

const (
	// Hourly, on the hour.
	PruneSchedule = "0 0 * * * *"
	// Just after local midnight.
	QuotaSchedule = "5 0 0 * * *"
)

// Pruner drops expired cache entries.
type Pruner interface {
	Prune() int
}

// QuotaRefresher applies a pending day change.
type QuotaRefresher interface {
	Refresh()
}

// RegisterMaintenance adds the cache pruning and quota rollover jobs.
func RegisterMaintenance(s *Scheduler, caches []Pruner, quota QuotaRefresher) error {
	if len(caches) > 0 {
		_, err := s.AddJob("prune-cache", PruneSchedule, func(ctx context.Context) error {
			removed := 0
			for _, c := range caches {
				removed += c.Prune()
			}
			if removed > 0 {
				logger.Info("[CRON] Pruned %d expired cache entries", removed)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("prune job: %w", err)
		}
	}
	if quota != nil {
		_, err := s.AddJob("quota-rollover", QuotaSchedule, func(ctx context.Context) error {
			quota.Refresh()
			return nil
		})
		if err != nil {
			return fmt.Errorf("quota job: %w", err)
		}
	}
	return nil
}
