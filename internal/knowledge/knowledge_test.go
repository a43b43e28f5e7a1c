package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/config"
)

func TestEligible(t *testing.T) {
	assert.False(t, Eligible("ab"))
	assert.False(t, Eligible(`"lion"`))
	assert.False(t, Eligible("site:example.org lion"))
	assert.True(t, Eligible("lion"))
	assert.True(t, Eligible("le lion blanc"))
	assert.False(t, Eligible("how do i fix my bike chain"))
	assert.True(t, Eligible("quel est le plus grand animal du monde"))
}

func TestVariants(t *testing.T) {
	assert.Equal(t, []string{"chats", "Chats", "chat", "chatss"}, Variants("chats"))
	assert.Equal(t, []string{"moyen age", "Moyen age", "moyen ages", "Moyen Age"}, Variants("moyen age"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "éco...", truncate("écologie", 3))
}

func newWiki(t *testing.T, pages map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var tried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("titles")
		mu.Lock()
		tried = append(tried, title)
		mu.Unlock()
		assert.Equal(t, "extracts|pageimages", r.URL.Query().Get("prop"))
		w.Header().Set("Content-Type", "application/json")
		if body, ok := pages[title]; ok {
			w.Write([]byte(body))
			return
		}
		w.Write([]byte(`{"query":{"pages":{"-1":{"title":"` + title + `","missing":""}}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &tried
}

func TestLookupTriesVariants(t *testing.T) {
	srv, tried := newWiki(t, map[string]string{
		"dinosaure": `{"query":{"pages":{"12":{"title":"Dinosaure","extract":"` + strings.Repeat("x", 20) + `","thumbnail":{"source":"https://img/d.png"}}}}}`,
	})

	f := NewFinder(config.KnowledgePanelConfig{
		APIURL:        srv.URL + "/{lang}/api.php",
		BaseURL:       "https://{lang}.vikidia.org/wiki/",
		SourceName:    "Vikidia",
		ExtractLength: 10,
	}, srv.Client())

	panel, err := f.Lookup(context.Background(), "dinosaures", "fr")
	require.NoError(t, err)
	require.NotNil(t, panel)
	assert.Equal(t, "Dinosaure", panel.Title)
	assert.Equal(t, "xxxxxxxxxx...", panel.Extract)
	assert.Equal(t, "https://img/d.png", panel.Thumbnail)
	assert.Equal(t, "https://fr.vikidia.org/wiki/Dinosaure", panel.URL)
	assert.Equal(t, "Vikidia", panel.Source)
	assert.Equal(t, []string{"dinosaures", "Dinosaures", "dinosaure"}, *tried)
}

func TestLookupNoMatch(t *testing.T) {
	srv, _ := newWiki(t, nil)
	f := NewFinder(config.KnowledgePanelConfig{APIURL: srv.URL, DisableThumbnails: true}, srv.Client())

	panel, err := f.Lookup(context.Background(), "zzzq", "en")
	require.NoError(t, err)
	assert.Nil(t, panel)
}

func TestLookupSkipsIneligibleQueries(t *testing.T) {
	srv, tried := newWiki(t, nil)
	f := NewFinder(config.KnowledgePanelConfig{APIURL: srv.URL}, srv.Client())

	panel, err := f.Lookup(context.Background(), "ab", "fr")
	require.NoError(t, err)
	assert.Nil(t, panel)
	assert.Empty(t, *tried)
}
