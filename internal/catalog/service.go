// Package catalog orchestrates the playlist acquisition-and-cache pipeline:
// cache-aside reads with time-based expiration, fetch+parse+replace on miss,
// and stale-cache fallback when the network is unavailable.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mylivetv/catalogd/internal/fetch"
	"github.com/mylivetv/catalogd/internal/log"
	"github.com/mylivetv/catalogd/internal/m3u"
	"github.com/mylivetv/catalogd/internal/metrics"
)

// DefaultExpiration is how long a cached generation is served without
// consulting the network.
const DefaultExpiration = 24 * time.Hour

// Store is the persistence surface the service needs. *store.Store satisfies it.
type Store interface {
	ChannelsByCategory(ctx context.Context, key string) ([]Channel, error)
	CacheTimestamp(ctx context.Context, key string) (time.Time, bool, error)
	ReplaceCategory(ctx context.Context, key string, channels []Channel) error
	DeleteCategory(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) error
	Validators(ctx context.Context, key string) (etag, lastModified string, err error)
	SaveValidators(ctx context.Context, key, etag, lastModified string) error
}

// PlaylistFetcher downloads raw playlist text. *fetch.Fetcher satisfies it.
type PlaylistFetcher interface {
	FetchConditional(ctx context.Context, url, etag, lastModified string) (*fetch.Result, error)
}

// Service is the channel catalog: one coherent cache-or-fetch contract per
// category key (the playlist URL). It performs no de-duplication of
// concurrent calls for the same key; callers coordinate that above this
// layer.
type Service struct {
	store   Store
	fetcher PlaylistFetcher
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the catalog. ttl <= 0 selects DefaultExpiration.
func NewService(st Store, f PlaylistFetcher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Service{
		store:   st,
		fetcher: f,
		ttl:     ttl,
		logger:  log.WithComponent("catalog"),
		now:     time.Now,
	}
}

// Channels returns the channel list for key. Unless forceRefresh is set, a
// fresh cached generation is served without a network call. On fetch failure
// any cached generation, however old, is returned as a success; only when the
// cache is also empty does the call fail, with an *EmptyResultError carrying
// the fetch error.
func (s *Service) Channels(ctx context.Context, key string, forceRefresh bool) ([]Channel, error) {
	if !forceRefresh {
		cached, err := s.store.ChannelsByCategory(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			ts, ok, err := s.store.CacheTimestamp(ctx, key)
			if err != nil {
				return nil, err
			}
			if ok {
				age := s.now().Sub(ts)
				if age < s.ttl {
					metrics.CacheHit()
					s.logger.Debug().Str("key", key).Int("channels", len(cached)).
						Dur("age", age).Msg("cache hit")
					return cached, nil
				}
				metrics.CacheExpired()
				s.logger.Debug().Str("key", key).Dur("age", age).Msg("cache expired")
				// The expired generation stays in place until the fresh one
				// replaces it, so a failed fetch can still fall back to it.
			}
		} else {
			metrics.CacheMiss()
		}
	}

	channels, err := s.refresh(ctx, key)
	if err != nil {
		metrics.FetchError()
		s.logger.Warn().Str("key", key).Err(err).Msg("refresh failed")
		stale, serr := s.store.ChannelsByCategory(ctx, key)
		if serr == nil && len(stale) > 0 {
			metrics.StaleFallback()
			s.logger.Info().Str("key", key).Int("channels", len(stale)).
				Msg("serving stale cache after fetch failure")
			return stale, nil
		}
		return nil, &EmptyResultError{Key: key, Err: err}
	}
	return channels, nil
}

// refresh fetches, parses and persists a new generation for key, then runs
// the opportunistic global sweep. A 304 from the upstream re-stamps the
// existing generation instead of rewriting it from the wire.
func (s *Service) refresh(ctx context.Context, key string) ([]Channel, error) {
	// Validators are an optimisation; a read failure just means a full GET.
	etag, lastModified, _ := s.store.Validators(ctx, key)

	res, err := s.fetcher.FetchConditional(ctx, key, etag, lastModified)
	if errors.Is(err, fetch.ErrNotModified) {
		metrics.FetchNotModified()
		cached, cerr := s.store.ChannelsByCategory(ctx, key)
		if cerr == nil && len(cached) > 0 {
			if rerr := s.store.ReplaceCategory(ctx, key, cached); rerr != nil {
				return nil, rerr
			}
			s.logger.Debug().Str("key", key).Msg("upstream unchanged; cache re-stamped")
			s.sweep(ctx)
			return cached, nil
		}
		// 304 against an empty cache: validators outlived the data. Refetch.
		res, err = s.fetcher.FetchConditional(ctx, key, "", "")
	}
	if err != nil {
		return nil, err
	}

	channels := fromPlaylist(m3u.Parse(res.Body))
	// Unconditional replace: an empty successful fetch legitimately clears
	// stale data.
	if err := s.store.ReplaceCategory(ctx, key, channels); err != nil {
		return nil, err
	}
	if err := s.store.SaveValidators(ctx, key, res.ETag, res.LastModified); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("saving fetch validators failed")
	}
	metrics.ChannelsFetched(len(channels))
	s.logger.Info().Str("key", key).Int("channels", len(channels)).Msg("catalog refreshed")

	s.sweep(ctx)
	return channels, nil
}

// sweep opportunistically purges expired generations across all keys.
// Failures are logged and swallowed; they never fail the primary call.
func (s *Service) sweep(ctx context.Context) {
	if err := s.store.DeleteExpired(ctx, s.now().Add(-s.ttl)); err != nil {
		metrics.SweepError()
		s.logger.Warn().Err(err).Msg("expired-cache sweep failed")
	}
}

// Sweep purges expired generations across all keys and reports the failure,
// for callers that run cleanup on its own schedule.
func (s *Service) Sweep(ctx context.Context) error {
	return s.store.DeleteExpired(ctx, s.now().Add(-s.ttl))
}

// Invalidate drops key's cached generation unconditionally.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	return s.store.DeleteCategory(ctx, key)
}

func fromPlaylist(entries []m3u.Channel) []Channel {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Channel, 0, len(entries))
	for _, e := range entries {
		out = append(out, Channel{
			Name:      e.Name,
			Logo:      e.Logo,
			Category:  e.Category,
			StreamURL: e.StreamURL,
		})
	}
	return out
}
