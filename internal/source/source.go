// Package source maps browse keys (category, language, country) to iptv-org
// playlist URLs, and keeps a local copy of the iptv-org index so the API can
// enumerate and validate keys without guessing.
package source

import "strings"

// DefaultBase is the iptv-org playlist root.
const DefaultBase = "https://iptv-org.github.io/iptv"

// Builder builds playlist URLs from browse keys. The zero value uses DefaultBase.
type Builder struct {
	base string
}

// NewBuilder returns a Builder rooted at base (DefaultBase if empty).
func NewBuilder(base string) Builder {
	if base == "" {
		base = DefaultBase
	}
	return Builder{base: strings.TrimSuffix(base, "/")}
}

// CategoryURL returns the playlist URL for a category name, e.g. "News" →
// <base>/categories/news.m3u.
func (b Builder) CategoryURL(name string) string {
	return b.url("categories", name)
}

// LanguageURL returns the playlist URL for an ISO language code.
func (b Builder) LanguageURL(code string) string {
	return b.url("languages", code)
}

// CountryURL returns the playlist URL for an ISO country code.
func (b Builder) CountryURL(code string) string {
	return b.url("countries", code)
}

func (b Builder) url(kind, key string) string {
	base := b.base
	if base == "" {
		base = DefaultBase
	}
	return base + "/" + kind + "/" + strings.ToLower(strings.TrimSpace(key)) + ".m3u"
}
