package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/mylivetv/catalogd/internal/httpclient"
)

// DefaultAPIBase is where the iptv-org machine-readable index lives.
const DefaultAPIBase = "https://iptv-org.github.io/api"

const indexUserAgent = "catalogd/1.0 (+iptv-org-index)"

// Category is one entry of the iptv-org categories.json index.
type Category struct {
	ID   string `json:"id"`   // e.g. "news"
	Name string `json:"name"` // e.g. "News"
}

// Country is one entry of countries.json.
type Country struct {
	Name string `json:"name"`
	Code string `json:"code"` // ISO 3166-1 alpha-2, upper-case
}

// Language is one entry of languages.json.
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"` // ISO 639-3, lower-case
}

// Index is the locally-cached iptv-org index. It answers "which browse keys
// exist" for the API layer. All lookups are case-insensitive.
type Index struct {
	mu         sync.RWMutex
	Categories []Category `json:"categories"`
	Countries  []Country  `json:"countries"`
	Languages  []Language `json:"languages"`
}

// LoadIndex reads a previously saved index from path. A missing file yields
// an empty index (key validation gracefully disabled).
func LoadIndex(path string) (*Index, error) {
	idx := &Index{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Save persists the index to a JSON file.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Refresh downloads categories.json, countries.json and languages.json from
// apiBase (DefaultAPIBase if empty) and replaces the index contents.
func (idx *Index) Refresh(ctx context.Context, client *http.Client, apiBase string) error {
	if client == nil {
		client = httpclient.Default()
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	apiBase = strings.TrimSuffix(apiBase, "/")

	var categories []Category
	if err := fetchJSON(ctx, client, apiBase+"/categories.json", &categories); err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	var countries []Country
	if err := fetchJSON(ctx, client, apiBase+"/countries.json", &countries); err != nil {
		return fmt.Errorf("countries: %w", err)
	}
	var languages []Language
	if err := fetchJSON(ctx, client, apiBase+"/languages.json", &languages); err != nil {
		return fmt.Errorf("languages: %w", err)
	}

	idx.mu.Lock()
	idx.Categories = categories
	idx.Countries = countries
	idx.Languages = languages
	idx.mu.Unlock()
	return nil
}

// Empty reports whether the index holds no entries at all.
func (idx *Index) Empty() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.Categories) == 0 && len(idx.Countries) == 0 && len(idx.Languages) == 0
}

// AllCategories returns a copy of the category list.
func (idx *Index) AllCategories() []Category {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]Category(nil), idx.Categories...)
}

// HasCategory reports whether id names a known category. An empty index
// accepts everything.
func (idx *Index) HasCategory(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.Categories) == 0 {
		return true
	}
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range idx.Categories {
		if strings.ToLower(c.ID) == id || strings.ToLower(c.Name) == id {
			return true
		}
	}
	return false
}

// HasCountry reports whether code names a known country (empty index accepts
// everything).
func (idx *Index) HasCountry(code string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.Countries) == 0 {
		return true
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range idx.Countries {
		if c.Code == code {
			return true
		}
	}
	return false
}

// HasLanguage reports whether code names a known language (empty index
// accepts everything).
func (idx *Index) HasLanguage(code string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.Languages) == 0 {
		return true
	}
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range idx.Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", indexUserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
