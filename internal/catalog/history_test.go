package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	entries []WatchedChannel
}

func (f *fakeHistoryStore) TouchWatched(_ context.Context, key string, ch Channel, at time.Time) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.StreamURL != ch.StreamURL {
			kept = append(kept, e)
		}
	}
	f.entries = append(kept, WatchedChannel{
		Name:        ch.Name,
		Logo:        ch.Logo,
		StreamURL:   ch.StreamURL,
		CategoryKey: key,
		WatchedAt:   at,
	})
	return nil
}

func (f *fakeHistoryStore) RecentlyWatched(_ context.Context, limit int) ([]WatchedChannel, error) {
	out := append([]WatchedChannel(nil), f.entries...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistoryStore) RecentlyWatchedByCategory(ctx context.Context, key string, limit int) ([]WatchedChannel, error) {
	all, _ := f.RecentlyWatched(ctx, len(f.entries))
	var out []WatchedChannel
	for _, e := range all {
		if e.CategoryKey == key {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistoryStore) DeleteWatchedBefore(_ context.Context, cutoff time.Time) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !e.WatchedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeHistoryStore) ClearWatched(context.Context) error {
	f.entries = nil
	return nil
}

func TestMarkWatchedRequiresStreamURL(t *testing.T) {
	h := NewHistory(&fakeHistoryStore{})
	err := h.MarkWatched(context.Background(), "key", Channel{Name: "No URL"})
	assert.ErrorIs(t, err, ErrNoStreamURL)
}

func TestMarkWatchedAndRecent(t *testing.T) {
	st := &fakeHistoryStore{}
	h := NewHistory(st)
	base := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	now := base
	h.now = func() time.Time { return now }

	require.NoError(t, h.MarkWatched(context.Background(), "news",
		Channel{Name: "CNN", StreamURL: "http://s/cnn"}))
	now = base.Add(time.Minute)
	require.NoError(t, h.MarkWatched(context.Background(), "sports",
		Channel{Name: "ESPN", StreamURL: "http://s/espn"}))

	recent, err := h.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ESPN", recent[0].Name)

	// Replaying CNN moves it to the front.
	now = base.Add(2 * time.Minute)
	require.NoError(t, h.MarkWatched(context.Background(), "news",
		Channel{Name: "CNN", StreamURL: "http://s/cnn"}))
	recent, err = h.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "CNN", recent[0].Name)

	byCat, err := h.RecentByCategory(context.Background(), "sports", 0)
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "ESPN", byCat[0].Name)
}
