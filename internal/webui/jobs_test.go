package webui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/cron"
)

func post(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
	return rr
}

func TestJobsEndpoints(t *testing.T) {
	scheduler := cron.NewScheduler()
	pruned := 0
	prune, err := scheduler.AddJob("prune-cache", "@hourly", func(context.Context) error {
		pruned++
		return nil
	})
	require.NoError(t, err)
	broken, err := scheduler.AddJob("quota-rollover", "@daily", func(context.Context) error {
		return errors.New("store locked")
	})
	require.NoError(t, err)

	handler := NewServer(&fakeEngine{}, nil, "fr").WithJobs(scheduler).Handler()

	rr := get(t, handler, "/api/jobs")
	require.Equal(t, http.StatusOK, rr.Code)
	var jobs []cron.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "prune-cache", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)

	rr = post(t, handler, "/api/jobs/"+prune.ID+"/run")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, pruned)

	rr = post(t, handler, "/api/jobs/"+broken.ID+"/run")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "store locked")

	rr = post(t, handler, "/api/jobs/"+prune.ID+"/pause")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, scheduler.ListJobs()[0].Enabled)

	rr = post(t, handler, "/api/jobs/"+prune.ID+"/pause")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = post(t, handler, "/api/jobs/"+prune.ID+"/resume")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, scheduler.ListJobs()[0].Enabled)

	assert.Equal(t, http.StatusNotFound, post(t, handler, "/api/jobs/missing/run").Code)
	assert.Equal(t, http.StatusNotFound, post(t, handler, "/api/jobs/"+prune.ID+"/explode").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, handler, "/api/jobs/"+prune.ID+"/run").Code)
}

func TestJobsEndpointWithoutScheduler(t *testing.T) {
	handler := NewServer(&fakeEngine{}, nil, "fr").Handler()

	rr := get(t, handler, "/api/jobs")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Equal(t, http.StatusNotFound, post(t, handler, "/api/jobs/x/run").Code)
}
