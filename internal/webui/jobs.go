package webui

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kayz/kidsearch/internal/cron"
	"github.com/kayz/kidsearch/internal/logger"
)

// JobController is satisfied by *cron.Scheduler.
type JobController interface {
	ListJobs() []*cron.Job
	RunNow(id string) error
	PauseJob(id string) error
	ResumeJob(id string) error
}

// WithJobs exposes the maintenance jobs under /api/jobs.
func (s *Server) WithJobs(jobs JobController) *Server {
	s.jobs = jobs
	return s
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, []*cron.Job{})
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.ListJobs())
}

// handleJobAction serves POST /api/jobs/{id}/{run|pause|resume}.
func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if s.jobs == nil || len(parts) != 2 || parts[0] == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id, action := parts[0], parts[1]

	var err error
	switch action {
	case "run":
		err = s.jobs.RunNow(id)
	case "pause":
		err = s.jobs.PauseJob(id)
	case "resume":
		err = s.jobs.ResumeJob(id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action " + action})
		return
	}

	switch {
	case errors.Is(err, cron.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	case err != nil && action == "run":
		logger.Warn("[Serve] job %s failed on demand: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	logger.Info("[Serve] job %s: %s", id, action)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": s.jobs.ListJobs()})
}
