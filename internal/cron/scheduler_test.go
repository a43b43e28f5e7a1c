package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeCron(t *testing.T) {
	if got := normalizeCron("*/5 * * * *"); got != "0 */5 * * * *" {
		t.Fatalf("unexpected normalized schedule: %q", got)
	}
	if got := normalizeCron("0 0 * * * *"); got != "0 0 * * * *" {
		t.Fatalf("six-field schedule should be unchanged: %q", got)
	}
}

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler()
	if _, err := s.AddJob("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected invalid cron expression error")
	}
	if _, err := s.AddJob("nil", "@hourly", nil); err == nil {
		t.Fatalf("expected error for missing task")
	}
	if len(s.ListJobs()) != 0 {
		t.Fatalf("rejected jobs must not be registered")
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	if _, err := s.AddJob("tick", "* * * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatalf("job never ran")
	}
}

func TestRunNowRecordsOutcome(t *testing.T) {
	s := NewScheduler()
	job, err := s.AddJob("flaky", "@daily", func(context.Context) error { return errors.New("disk full") })
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if err := s.RunNow(job.ID); err == nil {
		t.Fatalf("expected task error")
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 || jobs[0].Runs != 1 || jobs[0].LastError != "disk full" || jobs[0].LastRun == nil {
		t.Fatalf("unexpected job state: %#v", jobs[0])
	}
	if err := s.RunNow("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	s := NewScheduler()
	job, err := s.AddJob("j", "@hourly", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("add job: %v", err)
	}

	if err := s.PauseJob(job.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := s.PauseJob(job.ID); err == nil {
		t.Fatalf("expected already paused error")
	}
	if s.ListJobs()[0].Enabled {
		t.Fatalf("job should be disabled")
	}
	if err := s.ResumeJob(job.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !s.ListJobs()[0].Enabled || s.ListJobs()[0].EntryID == 0 {
		t.Fatalf("job should be rescheduled")
	}
	if err := s.ResumeJob(job.ID); err == nil {
		t.Fatalf("expected already running error")
	}
	if err := s.PauseJob("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

type countingPruner struct{ n int }

func (c *countingPruner) Prune() int { c.n++; return 2 }

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh() { c.n++ }

func TestRegisterMaintenance(t *testing.T) {
	s := NewScheduler()
	web, images := &countingPruner{}, &countingPruner{}
	quota := &countingRefresher{}
	if err := RegisterMaintenance(s, []Pruner{web, images}, quota); err != nil {
		t.Fatalf("register: %v", err)
	}

	jobs := s.ListJobs()
	if len(jobs) != 2 || jobs[0].Name != "prune-cache" || jobs[1].Name != "quota-rollover" {
		t.Fatalf("unexpected jobs: %#v", jobs)
	}
	for _, j := range jobs {
		if err := s.RunNow(j.ID); err != nil {
			t.Fatalf("run %s: %v", j.Name, err)
		}
	}
	if web.n != 1 || images.n != 1 || quota.n != 1 {
		t.Fatalf("maintenance tasks not called: web=%d images=%d quota=%d", web.n, images.n, quota.n)
	}
}
