package catalog

import "time"

// Channel is one playable entry from a parsed playlist. StreamURL is its
// identity within a category and is never empty for cached records; the other
// fields may be empty when the source omits them. Category is the free-text
// group-title label from the playlist, not the cache partition key.
type Channel struct {
	Name      string `json:"name"`
	Logo      string `json:"logo,omitempty"`
	Category  string `json:"category,omitempty"`
	StreamURL string `json:"stream_url"`
}

// WatchedChannel is one recently-watched history entry, keyed by stream URL.
// CategoryKey is the playlist URL the channel was loaded from.
type WatchedChannel struct {
	Name        string    `json:"name"`
	Logo        string    `json:"logo,omitempty"`
	StreamURL   string    `json:"stream_url"`
	CategoryKey string    `json:"category_key,omitempty"`
	WatchedAt   time.Time `json:"watched_at"`
}
