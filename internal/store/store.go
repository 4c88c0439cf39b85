// Package store is the Metadata Store: the durable, SQLite-backed table of
// track records keyed by canonical search query. It is the single authority
// on cache state and the coordination point for at-most-once Fetcher
// dispatch (try_insert_caching's unique-key atomicity).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/audiocache/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
  search_query     TEXT PRIMARY KEY,
  status           TEXT NOT NULL CHECK(status IN ('caching','cached','error')),
  file_name        TEXT UNIQUE,
  title            TEXT,
  artist           TEXT,
  album            TEXT,
  duration         REAL,
  cached_at        TEXT,
  last_accessed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks(status);
`

// Store wraps a bounded *sql.DB connection pool over the tracks table.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (a SQLite file path, or ":memory:") and applies the
// schema. maxOpenConns bounds the pool (spec: 1 <= n <= 10 suggested).
func Open(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the store is reachable, for startup diagnostics.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ErrNotFound is returned by Get when no row matches the query.
var ErrNotFound = errors.New("store: track not found")

// Get returns the row for query, or ErrNotFound.
func (s *Store) Get(ctx context.Context, query string) (*model.Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT search_query, status, COALESCE(file_name, ''), COALESCE(title, ''),
		       COALESCE(artist, ''), COALESCE(album, ''), COALESCE(duration, 0),
		       COALESCE(cached_at, ''), COALESCE(last_accessed_at, '')
		FROM tracks WHERE search_query = ?`, query)
	return scanTrack(row)
}

func scanTrack(row *sql.Row) (*model.Track, error) {
	var t model.Track
	var cachedAt, lastAccessedAt string
	if err := row.Scan(&t.SearchQuery, &t.Status, &t.FileName, &t.Title, &t.Artist, &t.Album,
		&t.Duration, &cachedAt, &lastAccessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.CachedAt = parseTime(cachedAt)
	t.LastAccessedAt = parseTime(lastAccessedAt)
	return &t, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// InsertResult reports the outcome of TryInsertCaching.
type InsertResult struct {
	Inserted bool // true: this call created the row
	Existed  bool // true: a row was already present (any status)
}

// TryInsertCaching idempotently inserts a row with status='caching' for
// query. If a row already exists, it is left untouched and Existed=true is
// reported. The INSERT OR IGNORE on the primary key is what makes
// at-most-once Fetcher dispatch safe under concurrent first-lookups: exactly
// one caller observes RowsAffected()==1.
func (s *Store) TryInsertCaching(ctx context.Context, query string) (InsertResult, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tracks (search_query, status) VALUES (?, 'caching')`, query)
	if err != nil {
		return InsertResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return InsertResult{}, err
	}
	if n == 1 {
		return InsertResult{Inserted: true}, nil
	}
	return InsertResult{Existed: true}, nil
}

// MarkCached atomically transitions query to status='cached', recording the
// artifact's file name and tag metadata.
func (s *Store) MarkCached(ctx context.Context, query, fileName, title, artist, album string, duration float64) error {
	now := nowString()
	_, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET status='cached', file_name=?, title=?, artist=?, album=?,
		       duration=?, cached_at=?, last_accessed_at=?
		WHERE search_query=?`, fileName, title, artist, album, duration, now, now, query)
	return err
}

// MarkError transitions query to status='error'.
func (s *Store) MarkError(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tracks SET status='error' WHERE search_query=?`, query)
	return err
}

// ResetToCaching is the repair-path transition: status back to 'caching'
// with file_name cleared, used when lookup finds a 'cached' row whose
// artifact is missing from disk.
func (s *Store) ResetToCaching(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET status='caching', file_name=NULL WHERE search_query=?`, query)
	return err
}

// Touch updates last_accessed_at for the row owning fileName. Best-effort:
// callers should log, not surface, failures (spec §4.4).
func (s *Store) Touch(ctx context.Context, fileName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET last_accessed_at=? WHERE file_name=?`, nowString(), fileName)
	return err
}

// ListCachedLRUAsc returns cached rows ordered by ascending last_accessed_at
// (true LRU, oldest first) for the eviction engine. Rows without a
// file_name are skipped — they are not consumable eviction victims.
func (s *Store) ListCachedLRUAsc(ctx context.Context) ([]*model.Track, error) {
	return s.queryTracks(ctx, `
		SELECT search_query, status, COALESCE(file_name, ''), COALESCE(title, ''),
		       COALESCE(artist, ''), COALESCE(album, ''), COALESCE(duration, 0),
		       COALESCE(cached_at, ''), COALESCE(last_accessed_at, '')
		FROM tracks
		WHERE status='cached' AND file_name IS NOT NULL
		ORDER BY last_accessed_at ASC`)
}

// ListCachedByRecencyDesc returns cached rows ordered by cached_at descending,
// for the track listing endpoint.
func (s *Store) ListCachedByRecencyDesc(ctx context.Context) ([]*model.Track, error) {
	return s.queryTracks(ctx, `
		SELECT search_query, status, COALESCE(file_name, ''), COALESCE(title, ''),
		       COALESCE(artist, ''), COALESCE(album, ''), COALESCE(duration, 0),
		       COALESCE(cached_at, ''), COALESCE(last_accessed_at, '')
		FROM tracks
		WHERE status='cached'
		ORDER BY cached_at DESC`)
}

func (s *Store) queryTracks(ctx context.Context, query string, args ...any) ([]*model.Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Track
	for rows.Next() {
		var t model.Track
		var cachedAt, lastAccessedAt string
		if err := rows.Scan(&t.SearchQuery, &t.Status, &t.FileName, &t.Title, &t.Artist, &t.Album,
			&t.Duration, &cachedAt, &lastAccessedAt); err != nil {
			return nil, err
		}
		t.CachedAt = parseTime(cachedAt)
		t.LastAccessedAt = parseTime(lastAccessedAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// DeleteByFileName removes the row owning fileName. Used by eviction after
// the artifact's unlink has already succeeded — never before.
func (s *Store) DeleteByFileName(ctx context.Context, fileName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE file_name=?`, fileName)
	return err
}

// timestampLayout is RFC 3339 with a fixed nine-digit fraction, so that the
// text ORDER BY on cached_at/last_accessed_at sorts chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowString() string {
	return time.Now().UTC().Format(timestampLayout)
}
