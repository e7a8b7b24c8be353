// Package store provides SQLite persistence for cached channel listings and
// the recently-watched history.
//
// Channels are partitioned by the playlist URL they were fetched from
// (category_url). A partition is always written as a whole generation:
// ReplaceCategory deletes the previous rows and inserts the new ones in a
// single transaction, so readers observe either the old generation or the
// new, never a mix.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/mylivetv/catalogd/internal/catalog"
)

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open initialises the SQLite store at dbPath and runs migrations.
// WAL + busy_timeout suit the read-heavy lookup workload.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_url TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		group_name TEXT NOT NULL DEFAULT '',
		stream_url TEXT NOT NULL,
		cached_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_channels_category ON channels(category_url);
	CREATE INDEX IF NOT EXISTS idx_channels_cached_at ON channels(cached_at);

	CREATE TABLE IF NOT EXISTS recently_watched (
		stream_url TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		category_url TEXT NOT NULL DEFAULT '',
		last_watched_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recent_watched_at ON recently_watched(last_watched_at);

	CREATE TABLE IF NOT EXISTS fetch_state (
		category_url TEXT PRIMARY KEY,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ChannelsByCategory returns the cached channels for key, ordered by display
// name. Empty slice when nothing is cached.
func (s *Store) ChannelsByCategory(ctx context.Context, key string) ([]catalog.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT name, logo_url, group_name, stream_url
	FROM channels WHERE category_url = ? ORDER BY name ASC`, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Channel
	for rows.Next() {
		var ch catalog.Channel
		if err := rows.Scan(&ch.Name, &ch.Logo, &ch.Category, &ch.StreamURL); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// CacheTimestamp returns when key's generation was written. ok is false when
// nothing is cached for key.
func (s *Store) CacheTimestamp(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cached_at FROM channels WHERE category_url = ? LIMIT 1`, key).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// ReplaceCategory atomically replaces key's cached generation with channels,
// stamped with the current time. Channels without a stream URL are never
// stored. An empty slice legitimately clears the partition.
func (s *Store) ReplaceCategory(ctx context.Context, key string, channels []catalog.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM channels WHERE category_url = ?`, key); err != nil {
		return err
	}
	stamp := s.now().UnixMilli()
	ins, err := tx.PrepareContext(ctx, `
	INSERT INTO channels (category_url, name, logo_url, group_name, stream_url, cached_at)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = ins.Close() }()
	for _, ch := range channels {
		if ch.StreamURL == "" {
			continue
		}
		if _, err := ins.ExecContext(ctx, key, ch.Name, ch.Logo, ch.Category, ch.StreamURL, stamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteCategory removes key's cached generation unconditionally.
func (s *Store) DeleteCategory(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE category_url = ?`, key)
	return err
}

// DeleteExpired removes every cached generation older than cutoff, across all
// keys, along with its fetch validators.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	ms := cutoff.UnixMilli()
	if _, err := s.db.ExecContext(ctx, `
	DELETE FROM fetch_state WHERE category_url IN
		(SELECT DISTINCT category_url FROM channels WHERE cached_at < ?)`, ms); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE cached_at < ?`, ms)
	return err
}

// CountByCategory returns how many channels are cached for key.
func (s *Store) CountByCategory(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE category_url = ?`, key).Scan(&n)
	return n, err
}

// Validators returns the conditional-GET validators saved for key. Empty
// strings when none are known.
func (s *Store) Validators(ctx context.Context, key string) (etag, lastModified string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT etag, last_modified FROM fetch_state WHERE category_url = ?`, key).
		Scan(&etag, &lastModified)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	return etag, lastModified, err
}

// SaveValidators upserts the conditional-GET validators for key.
func (s *Store) SaveValidators(ctx context.Context, key, etag, lastModified string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO fetch_state (category_url, etag, last_modified) VALUES (?, ?, ?)
	ON CONFLICT(category_url) DO UPDATE SET
		etag = excluded.etag, last_modified = excluded.last_modified`,
		key, etag, lastModified)
	return err
}
