package safeurl

import "net/url"

// IsHTTPOrHTTPS reports whether u is a valid URL with scheme http or https.
// Playlist sources and stream URLs come from remote text; rejecting file://,
// ftp:// and friends here keeps them from reaching the fetcher.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}
