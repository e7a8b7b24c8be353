package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mylivetv/catalogd/internal/log"
)

// DefaultRecentLimit bounds history reads when the caller does not say.
const DefaultRecentLimit = 50

// ErrNoStreamURL is returned by MarkWatched for a channel without a stream URL.
var ErrNoStreamURL = errors.New("catalog: channel has no stream URL")

// HistoryStore is the persistence surface for the recently-watched log.
// *store.Store satisfies it.
type HistoryStore interface {
	TouchWatched(ctx context.Context, key string, ch Channel, at time.Time) error
	RecentlyWatched(ctx context.Context, limit int) ([]WatchedChannel, error)
	RecentlyWatchedByCategory(ctx context.Context, key string, limit int) ([]WatchedChannel, error)
	DeleteWatchedBefore(ctx context.Context, cutoff time.Time) error
	ClearWatched(ctx context.Context) error
}

// History tracks which streams were played, most recent first. Replaying a
// stream supersedes its previous entry.
type History struct {
	store  HistoryStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewHistory wires the recently-watched log.
func NewHistory(st HistoryStore) *History {
	return &History{
		store:  st,
		logger: log.WithComponent("history"),
		now:    time.Now,
	}
}

// MarkWatched records that ch (loaded from category key) was just played.
func (h *History) MarkWatched(ctx context.Context, key string, ch Channel) error {
	if ch.StreamURL == "" {
		return ErrNoStreamURL
	}
	if err := h.store.TouchWatched(ctx, key, ch, h.now()); err != nil {
		return err
	}
	h.logger.Debug().Str("stream", ch.StreamURL).Str("key", key).Msg("marked watched")
	return nil
}

// Recent returns up to limit entries, most recent first. limit <= 0 selects
// DefaultRecentLimit.
func (h *History) Recent(ctx context.Context, limit int) ([]WatchedChannel, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return h.store.RecentlyWatched(ctx, limit)
}

// RecentByCategory is Recent scoped to one category key.
func (h *History) RecentByCategory(ctx context.Context, key string, limit int) ([]WatchedChannel, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return h.store.RecentlyWatchedByCategory(ctx, key, limit)
}

// PruneBefore drops entries last watched before cutoff.
func (h *History) PruneBefore(ctx context.Context, cutoff time.Time) error {
	return h.store.DeleteWatchedBefore(ctx, cutoff)
}

// Clear wipes the whole history.
func (h *History) Clear(ctx context.Context) error {
	return h.store.ClearWatched(ctx)
}
