package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kayz/kidsearch/internal/logger"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// Scheduler runs background maintenance jobs
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*Job
	timeout time.Duration
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()), // Support second-level precision
		jobs:    make(map[string]*Job),
		timeout: 5 * time.Minute,
	}
}

// normalizeCron prepends "0 " to standard 5-field cron expressions
// so they work with the 6-field (with seconds) parser.
func normalizeCron(schedule string) string {
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("[CRON] Scheduler started with %d jobs (%d enabled)", len(s.ListJobs()), s.countEnabled())
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("[CRON] Scheduler stopped")
}

// AddJob validates and schedules a task
func (s *Scheduler) AddJob(name, schedule string, task Task) (*Job, error) {
	if task == nil {
		return nil, fmt.Errorf("job %s has no task", name)
	}
	schedule = normalizeCron(schedule)

	// Validate cron expression using the 6-field (with seconds) parser
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Schedule:  schedule,
		Enabled:   true,
		CreatedAt: time.Now(),
		task:      task,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.scheduleJob(job); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	logger.Info("[CRON] Job created: %s (%s) - schedule: %s", job.ID, job.Name, job.Schedule)
	return job.Clone(), nil
}

// PauseJob pauses a job
func (s *Scheduler) PauseJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Enabled {
		return fmt.Errorf("job is already paused")
	}

	if job.EntryID != 0 {
		s.cron.Remove(job.EntryID)
		job.EntryID = 0
	}
	job.Enabled = false

	logger.Info("[CRON] Job paused: %s (%s)", job.ID, job.Name)
	return nil
}

// ResumeJob resumes a paused job
func (s *Scheduler) ResumeJob(id string) error {
	s.mu.Lock()
	job, exists := s.jobs[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Enabled {
		s.mu.Unlock()
		return fmt.Errorf("job is already running")
	}
	job.Enabled = true
	s.mu.Unlock()

	if err := s.scheduleJob(job); err != nil {
		s.mu.Lock()
		job.Enabled = false
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	logger.Info("[CRON] Job resumed: %s (%s)", job.ID, job.Name)
	return nil
}

// ListJobs returns all jobs ordered by name
func (s *Scheduler) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return s.executeJob(job)
}

func (s *Scheduler) countEnabled() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if job.Enabled {
			n++
		}
	}
	return n
}

// scheduleJob schedules a job in the cron scheduler
func (s *Scheduler) scheduleJob(job *Job) error {
	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		_ = s.executeJob(job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	job.EntryID = entryID
	s.mu.Unlock()
	return nil
}

// executeJob executes a job and records the outcome
func (s *Scheduler) executeJob(job *Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job.task(ctx)

	s.mu.Lock()
	job.LastRun = &start
	job.Runs++
	job.LastError = ""
	if err != nil {
		job.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("[CRON] Job %s (%s) failed: %v", job.ID, job.Name, err)
		return err
	}
	logger.Debug("[CRON] Job %s (%s) finished in %v", job.ID, job.Name, time.Since(start))
	return nil
}
