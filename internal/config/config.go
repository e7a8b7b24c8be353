// Package config loads catalogd settings from the environment.
// Call LoadEnvFile(".env") before Load() to use a .env file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds daemon + pipeline settings.
type Config struct {
	ListenAddr string // HTTP API bind address
	DBPath     string // SQLite database path

	PlaylistBase string // playlist root; empty = iptv-org default
	APIBase      string // iptv-org api root for the browse index; empty = default
	IndexPath    string // local JSON copy of the browse index

	CacheTTL      time.Duration // how long a cached generation stays fresh
	FetchTimeout  time.Duration // per-request HTTP timeout
	PerHostRPS    float64       // fetcher rate limit per upstream host; 0 = off
	SweepInterval time.Duration // background expired-cache sweep period

	LogLevel string
}

// Load reads config from environment with defaults. The 24h cache TTL matches
// how often iptv-org regenerates its playlists.
func Load() *Config {
	c := &Config{
		ListenAddr:    getEnv("CATALOGD_LISTEN", ":8080"),
		DBPath:        getEnv("CATALOGD_DB", "./catalog.db"),
		PlaylistBase:  os.Getenv("CATALOGD_PLAYLIST_BASE"),
		APIBase:       os.Getenv("CATALOGD_API_BASE"),
		IndexPath:     getEnv("CATALOGD_INDEX", "./index.json"),
		CacheTTL:      getEnvDuration("CATALOGD_CACHE_TTL", 24*time.Hour),
		FetchTimeout:  getEnvDuration("CATALOGD_FETCH_TIMEOUT", 30*time.Second),
		PerHostRPS:    getEnvFloat("CATALOGD_FETCH_RPS", 2),
		SweepInterval: getEnvDuration("CATALOGD_SWEEP_INTERVAL", time.Hour),
		LogLevel:      os.Getenv("CATALOGD_LOG_LEVEL"),
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
