package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/kidsearch/internal/config"
)

func TestMeiliSearchWebSearch(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/pages/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.Write([]byte(`{"hits":[
			{"title":"Volcans","url":"https://docs.test/volcans","content":"raw","images":[{"url":"https://docs.test/v.png"}],
			 "_formatted":{"title":"<span class=\"searchmatch\">Volcans</span>","content":"Les <span class=\"searchmatch\">volcans</span>..."}},
			{"title":"Lave","url":"https://docs.test/lave","content":"la lave","_formatted":{"excerpt":"extrait"}},
			{"title":"Magma","url":"https://docs.test/magma","content":"le magma"}
		]}`))
	}))
	defer srv.Close()

	src, err := NewSource(config.SourceConfig{
		ID: "docs", Name: "Docs", Type: config.TypeMeiliSearch, Enabled: true, Weight: 0.8,
		APIURL: srv.URL, APIKey: "secret",
		Options: map[string]any{
			"index_name":      "pages",
			"filter":          "lang = {lang}",
			"semantic_search": map[string]any{"enabled": true},
		},
	}, srv.Client(), 0)
	require.NoError(t, err)

	got := src.Search(context.Background(), "volcans", "fr", 4)
	require.Len(t, got, 3)

	assert.Equal(t, "volcans", payload["q"])
	assert.EqualValues(t, 4, payload["limit"])
	assert.Equal(t, "lang = fr", payload["filter"])
	assert.Equal(t, "last", payload["matchingStrategy"])
	assert.Equal(t, `<span class="searchmatch">`, payload["highlightPreTag"])
	hybrid, _ := payload["hybrid"].(map[string]any)
	assert.EqualValues(t, 0.75, hybrid["semanticRatio"])
	assert.Equal(t, "default", hybrid["embedder"])

	assert.Equal(t, "Volcans", got[0].Title)
	assert.Equal(t, "Les volcans...", got[0].SnippetPlain)
	assert.Equal(t, "https://docs.test/v.png", got[0].ThumbnailURL)
	assert.Equal(t, "extrait", got[1].SnippetPlain)
	assert.Equal(t, "le magma", got[2].SnippetPlain)
	assert.Equal(t, "Docs", got[2].SourceName)
}

func TestMeiliSearchImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[
			{"title":"Sans image","url":"https://docs.test/a"},
			{"title":"Volcan","url":"https://docs.test/volcan","images":[{"url":"https://docs.test/volcan.jpg"}]}
		]}`))
	}))
	defer srv.Close()

	src, err := NewSource(config.SourceConfig{
		ID: "docs", Type: config.TypeMeiliSearch, Enabled: true, SupportsImages: true,
		APIURL: srv.URL, Options: map[string]any{"index_name": "pages"},
	}, srv.Client(), 0)
	require.NoError(t, err)

	got := src.SearchImages(context.Background(), "volcan", "fr", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "https://docs.test/volcan.jpg", got[0].Link)
	require.NotNil(t, got[0].Image)
	assert.Equal(t, "https://docs.test/volcan", got[0].Image.ContextURL)
	assert.Equal(t, 400, got[0].Image.Width)
	assert.Equal(t, 300, got[0].Image.Height)
}

func TestMeiliSearchRequiresIndex(t *testing.T) {
	_, err := NewSource(config.SourceConfig{ID: "docs", Type: config.TypeMeiliSearch, APIURL: "http://x"}, nil, 0)
	assert.Error(t, err)
}
