package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is the work a job runs on each tick.
type Task func(ctx context.Context) error

// Job represents a scheduled maintenance task
type Job struct {
	ID        string     `json:"id"`                   // Unique identifier
	Name      string     `json:"name"`                 // Human-readable name
	Schedule  string     `json:"schedule"`             // Cron expression (with seconds)
	Enabled   bool       `json:"enabled"`              // Whether job is active
	CreatedAt time.Time  `json:"created_at"`           // Job creation timestamp
	LastRun   *time.Time `json:"last_run,omitempty"`   // Last execution timestamp
	LastError string     `json:"last_error,omitempty"` // Last error message
	Runs      int        `json:"runs"`                 // Completed executions

	// Runtime fields
	EntryID cron.EntryID `json:"-"`
	task    Task
}

// Clone creates a copy of the job without its task
func (j *Job) Clone() *Job {
	clone := &Job{
		ID:        j.ID,
		Name:      j.Name,
		Schedule:  j.Schedule,
		Enabled:   j.Enabled,
		CreatedAt: j.CreatedAt,
		LastError: j.LastError,
		Runs:      j.Runs,
		EntryID:   j.EntryID,
	}

	if j.LastRun != nil {
		lastRun := *j.LastRun
		clone.LastRun = &lastRun
	}

	return clone
}
