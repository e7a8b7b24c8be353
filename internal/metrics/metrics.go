// Package metrics defines the Prometheus instrumentation for the catalog
// pipeline. Counters are registered via promauto and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_cache_hits_total",
		Help: "Channel lookups served from a fresh cache generation",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_cache_misses_total",
		Help: "Channel lookups that required a network fetch",
	})
	cacheExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_cache_expired_total",
		Help: "Channel lookups that found only an expired cache generation",
	})
	staleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_stale_fallbacks_total",
		Help: "Lookups answered with stale cache after a fetch failure",
	})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_fetch_errors_total",
		Help: "Playlist fetch or parse failures",
	})
	fetchNotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_fetch_not_modified_total",
		Help: "Conditional playlist fetches answered 304 by the upstream",
	})
	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_sweep_errors_total",
		Help: "Failures of the opportunistic expired-cache sweep",
	})
	channelsFetched = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalogd_channels_fetched",
		Help:    "Channels parsed per successful playlist fetch",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)

func CacheHit()             { cacheHits.Inc() }
func CacheMiss()            { cacheMisses.Inc() }
func CacheExpired()         { cacheExpired.Inc() }
func StaleFallback()        { staleFallbacks.Inc() }
func FetchError()           { fetchErrors.Inc() }
func FetchNotModified()     { fetchNotModified.Inc() }
func SweepError()           { sweepErrors.Inc() }
func ChannelsFetched(n int) { channelsFetched.Observe(float64(n)) }
