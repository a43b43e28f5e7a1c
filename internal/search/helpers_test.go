package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kayz/kidsearch/internal/config"
)

type fakeProtocol struct {
	mu     sync.Mutex
	calls  int
	web    []Result
	images []Result
	err    error
	delay  time.Duration
}

func (f *fakeProtocol) wait(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeProtocol) WebSearch(ctx context.Context, q Query) ([]Result, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.web, f.err
}

func (f *fakeProtocol) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImageProtocol struct {
	fakeProtocol
}

func (f *fakeImageProtocol) ImageSearch(ctx context.Context, q Query) ([]Result, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.images, f.err
}

func fakeSource(id string, weight float64, p Protocol) *Source {
	return newSource(config.SourceConfig{
		ID:             id,
		Name:           strings.ToUpper(id[:1]) + id[1:],
		Type:           config.TypeCustom,
		Enabled:        true,
		Weight:         weight,
		APIURL:         "http://" + id + ".test",
		SupportsImages: true,
		ExcludeDomains: []string{id + ".org"},
	}, p, time.Second)
}

func results(host string, n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{
			Title: fmt.Sprintf("%s page %d", host, i),
			Link:  fmt.Sprintf("https://%s/page/%d", host, i),
		}
	}
	return out
}

// fakePrimary serves Custom Search JSON responses.
type fakePrimary struct {
	srv     *httptest.Server
	hits    atomic.Int32
	status  atomic.Int32
	items   atomic.Int32
	lastURL atomic.Value
}

func newFakePrimary(t *testing.T, items int) *fakePrimary {
	t.Helper()
	fp := &fakePrimary{}
	fp.status.Store(http.StatusOK)
	fp.items.Store(int32(items))
	fp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		fp.lastURL.Store(r.URL.String())
		if code := int(fp.status.Load()); code != http.StatusOK {
			http.Error(w, `{"error":{"code":`+fmt.Sprint(code)+`,"message":"nope"}}`, code)
			return
		}
		n := int(fp.items.Load())
		var parts []string
		for i := 0; i < n; i++ {
			parts = append(parts, fmt.Sprintf(`{"title":"Primary %d","link":"https://primary.test/%d","displayLink":"primary.test","snippet":"s%d","htmlSnippet":"<b>s%d</b>"}`, i, i, i, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items":[%s],"searchInformation":{"totalResults":"1234","searchTime":0.25}}`, strings.Join(parts, ","))
	}))
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakePrimary) LastURL() string {
	s, _ := fp.lastURL.Load().(string)
	return s
}

type countingQuota struct {
	used atomic.Int32
}

func (q *countingQuota) CanMakeRequest() bool { return true }
func (q *countingQuota) RecordRequest()       { q.used.Add(1) }

func newTestPrimaryClient(fp *fakePrimary, q QuotaRecorder) *PrimaryClient {
	p := NewPrimaryClient(config.PrimaryConfig{
		Enabled:  true,
		Endpoint: fp.srv.URL + "/customsearch/v1",
		APIKey:   "key",
		CSEID:    "cx",
		PageSize: 10,
	}, fp.srv.Client(), q)
	p.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return p
}
