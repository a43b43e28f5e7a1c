package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/config"
)

func TestPrimaryBuildURL(t *testing.T) {
	p := NewPrimaryClient(config.PrimaryConfig{Endpoint: "https://api.test/cse", APIKey: "k", CSEID: "cx"}, nil, nil)

	u, err := url.Parse(p.BuildURL(PrimaryRequest{
		Query: "volcans", Kind: KindWeb, Page: 3, Sort: "date", Lang: "fr",
		Exclusions: []string{"vikidia.org", "wikipedia.org"},
	}))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "volcans -site:vikidia.org -site:wikipedia.org", q.Get("q"))
	assert.Equal(t, "k", q.Get("key"))
	assert.Equal(t, "cx", q.Get("cx"))
	assert.Equal(t, "21", q.Get("start"))
	assert.Equal(t, "10", q.Get("num"))
	assert.Equal(t, "active", q.Get("safe"))
	assert.Equal(t, "1", q.Get("filter"))
	assert.Equal(t, "date", q.Get("sort"))
	assert.Equal(t, "lang_fr", q.Get("lr"))
	assert.Empty(t, q.Get("searchType"))

	u, _ = url.Parse(p.BuildURL(PrimaryRequest{Query: "volcans", Kind: KindImages, Page: 1, Lang: "fr"}))
	assert.Equal(t, "image", u.Query().Get("searchType"))
	assert.Empty(t, u.Query().Get("lr"))
	assert.Equal(t, "1", u.Query().Get("start"))
	assert.Empty(t, u.Query().Get("sort"))
}

func TestPrimarySearchMapsItems(t *testing.T) {
	fp := newFakePrimary(t, 3)
	q := &countingQuota{}
	resp, err := newTestPrimaryClient(fp, q).Search(context.Background(), PrimaryRequest{Query: "x", Kind: KindWeb, Page: 1})
	require.NoError(t, err)

	require.Len(t, resp.Items, 3)
	assert.EqualValues(t, 1234, resp.TotalResults)
	assert.Equal(t, 0.25, resp.SearchTime)
	assert.Equal(t, "Primary 0", resp.Items[0].Title)
	assert.Equal(t, "primary.test", resp.Items[0].DisplayHost)
	assert.Equal(t, "<b>s0</b>", resp.Items[0].SnippetMarked)
	assert.Equal(t, PrimarySourceName, resp.Items[0].SourceName)
	assert.EqualValues(t, 1, q.used.Load())
}

func TestPrimaryRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[{"title":"t","link":"https://a.test"}],"searchInformation":{"totalResults":"1"}}`))
	}))
	defer srv.Close()

	q := &countingQuota{}
	fp := &fakePrimary{srv: srv}
	resp, err := newTestPrimaryClient(fp, q).Search(context.Background(), PrimaryRequest{Query: "x", Page: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 3, calls)
	assert.EqualValues(t, 3, q.used.Load(), "every attempt is metered")
}

func TestPrimaryGivesUpAfterTwoRetries(t *testing.T) {
	fp := newFakePrimary(t, 1)
	fp.status.Store(http.StatusInternalServerError)
	q := &countingQuota{}

	_, err := newTestPrimaryClient(fp, q).Search(context.Background(), PrimaryRequest{Query: "x", Page: 1})
	require.Error(t, err)
	assert.EqualValues(t, 3, fp.hits.Load())
	assert.EqualValues(t, 3, q.used.Load())
}

func TestPrimaryDoesNotRetryClientErrors(t *testing.T) {
	fp := newFakePrimary(t, 1)
	fp.status.Store(http.StatusForbidden)

	_, err := newTestPrimaryClient(fp, &countingQuota{}).Search(context.Background(), PrimaryRequest{Query: "x", Page: 1})
	require.Error(t, err)
	assert.EqualValues(t, 1, fp.hits.Load())
}

func TestPrimaryErrorPayloadIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded"}}`))
	}))
	defer srv.Close()

	_, err := newTestPrimaryClient(&fakePrimary{srv: srv}, nil).Search(context.Background(), PrimaryRequest{Query: "x", Page: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quota exceeded")
}

func TestPrimaryImageItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"title":"Lion","link":"https://img.test/lion.jpg","displayLink":"zoo.test",
			"image":{"contextLink":"https://zoo.test/lion","thumbnailLink":"https://tn.test/lion","width":640,"height":480}}]}`))
	}))
	defer srv.Close()

	resp, err := newTestPrimaryClient(&fakePrimary{srv: srv}, nil).Search(context.Background(), PrimaryRequest{Query: "lion", Kind: KindImages, Page: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	img := resp.Items[0].Image
	require.NotNil(t, img)
	assert.Equal(t, "https://zoo.test/lion", img.ContextURL)
	assert.Equal(t, 640, img.Width)
	assert.Equal(t, "https://tn.test/lion", resp.Items[0].ThumbnailURL)
	assert.Zero(t, resp.TotalResults)
}
