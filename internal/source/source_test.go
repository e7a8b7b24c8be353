package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderURLs(t *testing.T) {
	b := NewBuilder("")
	assert.Equal(t,
		"https://iptv-org.github.io/iptv/categories/news.m3u", b.CategoryURL("News"))
	assert.Equal(t,
		"https://iptv-org.github.io/iptv/languages/fra.m3u", b.LanguageURL("FRA"))
	assert.Equal(t,
		"https://iptv-org.github.io/iptv/countries/us.m3u", b.CountryURL(" US "))
}

func TestBuilderCustomBase(t *testing.T) {
	b := NewBuilder("http://mirror.local/iptv/")
	assert.Equal(t, "http://mirror.local/iptv/categories/kids.m3u", b.CategoryURL("Kids"))
}

func TestBuilderZeroValue(t *testing.T) {
	var b Builder
	assert.Equal(t,
		"https://iptv-org.github.io/iptv/categories/news.m3u", b.CategoryURL("news"))
}

func TestIndexRefreshAndLookups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/categories.json":
			_, _ = w.Write([]byte(`[{"id":"news","name":"News"},{"id":"kids","name":"Kids"}]`))
		case "/countries.json":
			_, _ = w.Write([]byte(`[{"name":"United States","code":"US"}]`))
		case "/languages.json":
			_, _ = w.Write([]byte(`[{"name":"English","code":"eng"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	idx := &Index{}
	require.NoError(t, idx.Refresh(context.Background(), srv.Client(), srv.URL))

	assert.False(t, idx.Empty())
	assert.Len(t, idx.AllCategories(), 2)
	assert.True(t, idx.HasCategory("news"))
	assert.True(t, idx.HasCategory("News"))
	assert.False(t, idx.HasCategory("sports"))
	assert.True(t, idx.HasCountry("us"))
	assert.False(t, idx.HasCountry("zz"))
	assert.True(t, idx.HasLanguage("ENG"))
	assert.False(t, idx.HasLanguage("xxx"))
}

func TestIndexEmptyAcceptsEverything(t *testing.T) {
	idx := &Index{}
	assert.True(t, idx.HasCategory("anything"))
	assert.True(t, idx.HasCountry("zz"))
	assert.True(t, idx.HasLanguage("xxx"))
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")

	idx := &Index{Categories: []Category{{ID: "news", Name: "News"}}}
	require.NoError(t, idx.Save(path))

	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	require.Len(t, loaded.AllCategories(), 1)
	assert.Equal(t, "news", loaded.AllCategories()[0].ID)
}

func TestLoadIndexMissingFile(t *testing.T) {
	idx, err := LoadIndex(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.True(t, idx.Empty())
}
