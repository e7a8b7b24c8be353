package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mylivetv/catalogd/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChannels() []catalog.Channel {
	return []catalog.Channel{
		{Name: "CNN", Logo: "http://x/cnn.png", Category: "News", StreamURL: "http://s/cnn"},
		{Name: "Al Jazeera", Category: "News", StreamURL: "http://s/aj"},
		{Name: "ESPN", Category: "Sports", StreamURL: "http://s/espn"},
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var busy int
	require.NoError(t, s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestReplaceAndReadOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "https://iptv-org.github.io/iptv/categories/news.m3u"

	require.NoError(t, s.ReplaceCategory(ctx, key, testChannels()))

	got, err := s.ChannelsByCategory(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Alphabetical by name, imposed by the read path.
	assert.Equal(t, "Al Jazeera", got[0].Name)
	assert.Equal(t, "CNN", got[1].Name)
	assert.Equal(t, "ESPN", got[2].Name)
	assert.Equal(t, "http://x/cnn.png", got[1].Logo)
	assert.Equal(t, "News", got[1].Category)
}

func TestReplaceDropsOldGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "k"

	require.NoError(t, s.ReplaceCategory(ctx, key, testChannels()))
	replacement := []catalog.Channel{{Name: "Only One", StreamURL: "http://s/one"}}
	require.NoError(t, s.ReplaceCategory(ctx, key, replacement))

	got, err := s.ChannelsByCategory(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Only One", got[0].Name)
}

func TestReplaceWithEmptyClearsPartition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "k"

	require.NoError(t, s.ReplaceCategory(ctx, key, testChannels()))
	require.NoError(t, s.ReplaceCategory(ctx, key, nil))

	got, err := s.ChannelsByCategory(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceSkipsEmptyStreamURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chans := []catalog.Channel{
		{Name: "Valid", StreamURL: "http://s/v"},
		{Name: "Broken"}, // no stream URL: never stored
	}
	require.NoError(t, s.ReplaceCategory(ctx, "k", chans))
	got, err := s.ChannelsByCategory(ctx, "k")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Valid", got[0].Name)
}

func TestCacheTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.CacheTimestamp(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	stamp := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }
	require.NoError(t, s.ReplaceCategory(ctx, "k", testChannels()))

	ts, ok, err := s.CacheTimestamp(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stamp.UnixMilli(), ts.UnixMilli())
}

func TestDeleteExpiredGlobalSweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base.Add(-48 * time.Hour) }
	require.NoError(t, s.ReplaceCategory(ctx, "old", testChannels()))
	require.NoError(t, s.SaveValidators(ctx, "old", `"e1"`, ""))
	s.now = func() time.Time { return base }
	require.NoError(t, s.ReplaceCategory(ctx, "fresh", testChannels()))

	require.NoError(t, s.DeleteExpired(ctx, base.Add(-24*time.Hour)))

	old, err := s.ChannelsByCategory(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, old)
	fresh, err := s.ChannelsByCategory(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	// Validators for the swept key are gone too.
	etag, _, err := s.Validators(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, etag)
}

func TestDeleteCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceCategory(ctx, "a", testChannels()))
	require.NoError(t, s.ReplaceCategory(ctx, "b", testChannels()))

	require.NoError(t, s.DeleteCategory(ctx, "a"))

	n, err := s.CountByCategory(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountByCategory(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestValidatorsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	etag, lm, err := s.Validators(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, etag)
	assert.Empty(t, lm)

	require.NoError(t, s.SaveValidators(ctx, "k", `"abc"`, "Mon, 02 Jan 2006 15:04:05 GMT"))
	require.NoError(t, s.SaveValidators(ctx, "k", `"def"`, "Tue, 03 Jan 2006 15:04:05 GMT"))

	etag, lm, err = s.Validators(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"def"`, etag)
	assert.Equal(t, "Tue, 03 Jan 2006 15:04:05 GMT", lm)
}

func TestRecentlyWatchedSupersede(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch := catalog.Channel{Name: "CNN", StreamURL: "http://s/cnn"}
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.TouchWatched(ctx, "key1", ch, t0))
	require.NoError(t, s.TouchWatched(ctx, "key1",
		catalog.Channel{Name: "ESPN", StreamURL: "http://s/espn"}, t0.Add(time.Minute)))
	// Replaying CNN supersedes its old entry and bumps it to the top.
	require.NoError(t, s.TouchWatched(ctx, "key1", ch, t0.Add(2*time.Minute)))

	got, err := s.RecentlyWatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CNN", got[0].Name)
	assert.Equal(t, t0.Add(2*time.Minute).UnixMilli(), got[0].WatchedAt.UnixMilli())
	assert.Equal(t, "ESPN", got[1].Name)
}

func TestRecentlyWatchedByCategoryAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.TouchWatched(ctx, "news",
		catalog.Channel{Name: "CNN", StreamURL: "http://s/cnn"}, t0))
	require.NoError(t, s.TouchWatched(ctx, "sports",
		catalog.Channel{Name: "ESPN", StreamURL: "http://s/espn"}, t0.Add(time.Hour)))

	news, err := s.RecentlyWatchedByCategory(ctx, "news", 10)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "news", news[0].CategoryKey)

	require.NoError(t, s.DeleteWatchedBefore(ctx, t0.Add(time.Minute)))
	all, err := s.RecentlyWatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ESPN", all[0].Name)

	require.NoError(t, s.ClearWatched(ctx))
	all, err = s.RecentlyWatched(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
