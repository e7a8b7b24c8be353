package store

import (
	"context"
	"time"

	"github.com/mylivetv/catalogd/internal/catalog"
)

// TouchWatched records that ch was just played. An existing entry for the
// same stream URL is superseded (deleted and reinserted) so the row carries
// the new timestamp and metadata.
func (s *Store) TouchWatched(ctx context.Context, key string, ch catalog.Channel, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recently_watched WHERE stream_url = ?`, ch.StreamURL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO recently_watched (stream_url, name, logo_url, category_url, last_watched_at)
	VALUES (?, ?, ?, ?, ?)`,
		ch.StreamURL, ch.Name, ch.Logo, key, at.UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentlyWatched returns up to limit history entries, most recent first.
func (s *Store) RecentlyWatched(ctx context.Context, limit int) ([]catalog.WatchedChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT stream_url, name, logo_url, category_url, last_watched_at
	FROM recently_watched ORDER BY last_watched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanWatched(rows)
}

// RecentlyWatchedByCategory returns up to limit history entries for one
// category key, most recent first.
func (s *Store) RecentlyWatchedByCategory(ctx context.Context, key string, limit int) ([]catalog.WatchedChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT stream_url, name, logo_url, category_url, last_watched_at
	FROM recently_watched WHERE category_url = ?
	ORDER BY last_watched_at DESC LIMIT ?`, key, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanWatched(rows)
}

// DeleteWatchedBefore removes history entries last watched before cutoff.
func (s *Store) DeleteWatchedBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recently_watched WHERE last_watched_at < ?`, cutoff.UnixMilli())
	return err
}

// ClearWatched removes the entire history.
func (s *Store) ClearWatched(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recently_watched`)
	return err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanWatched(rows rowScanner) ([]catalog.WatchedChannel, error) {
	var out []catalog.WatchedChannel
	for rows.Next() {
		var w catalog.WatchedChannel
		var ms int64
		if err := rows.Scan(&w.StreamURL, &w.Name, &w.Logo, &w.CategoryKey, &ms); err != nil {
			return nil, err
		}
		w.WatchedAt = time.UnixMilli(ms)
		out = append(out, w)
	}
	return out, rows.Err()
}
