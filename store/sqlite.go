package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	_ "modernc.org/sqlite"
)

const createTable = `
CREATE TABLE IF NOT EXISTS repodata_cache (
	url            TEXT PRIMARY KEY,
	etag           TEXT NOT NULL DEFAULT '',
	last_modified  TEXT NOT NULL DEFAULT '',
	cache_control  TEXT NOT NULL DEFAULT '',
	fetched_at     INTEGER NOT NULL,
	schema_version INTEGER NOT NULL,
	body           BLOB NOT NULL
)`

// SQLite is the default RepodataCache backend: a single-file embedded
// database via the pure-Go modernc.org/sqlite driver, with goqu building
// the SQL.
type SQLite struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// OpenSQLite opens (creating if necessary) a SQLite-backed RepodataCache at
// path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}
	return &SQLite{db: db, dialect: goqu.Dialect("sqlite3")}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, url string) (CacheEntry, bool, error) {
	query, args, err := s.dialect.From("repodata_cache").
		Select("url", "etag", "last_modified", "cache_control", "fetched_at", "schema_version", "body").
		Where(goqu.Ex{"url": url}).
		ToSQL()
	if err != nil {
		return CacheEntry{}, false, err
	}
	var e CacheEntry
	var fetchedAtUnix int64
	row := s.db.QueryRowContext(ctx, query, args...)
	switch err := row.Scan(&e.URL, &e.ETag, &e.LastModified, &e.CacheControl, &fetchedAtUnix, &e.SchemaVersion, &e.Body); {
	case errors.Is(err, sql.ErrNoRows):
		return CacheEntry{}, false, nil
	case err != nil:
		return CacheEntry{}, false, fmt.Errorf("store: reading cache entry: %w", err)
	}
	e.FetchedAt = time.UnixMilli(fetchedAtUnix).UTC()
	if e.SchemaVersion != schemaVersion {
		// Corrupt/stale schema: discard quietly rather than surfacing an
		// error.
		_ = s.Delete(ctx, url)
		return CacheEntry{}, false, nil
	}
	return e, true, nil
}

func (s *SQLite) Put(ctx context.Context, e CacheEntry) error {
	e.SchemaVersion = schemaVersion
	if e.FetchedAt.IsZero() {
		return fmt.Errorf("store: CacheEntry.FetchedAt must be set")
	}
	query, args, err := s.dialect.Insert("repodata_cache").
		Rows(goqu.Record{
			"url":            e.URL,
			"etag":           e.ETag,
			"last_modified":  e.LastModified,
			"cache_control":  e.CacheControl,
			"fetched_at":     e.FetchedAt.UnixMilli(),
			"schema_version": e.SchemaVersion,
			"body":           e.Body,
		}).
		OnConflict(goqu.DoUpdate("url", goqu.Record{
			"etag":           e.ETag,
			"last_modified":  e.LastModified,
			"cache_control":  e.CacheControl,
			"fetched_at":     e.FetchedAt.UnixMilli(),
			"schema_version": e.SchemaVersion,
			"body":           e.Body,
		})).
		ToSQL()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: writing cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, url string) error {
	query, args, err := s.dialect.Delete("repodata_cache").Where(goqu.Ex{"url": url}).ToSQL()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: deleting cache entry: %w", err)
	}
	return nil
}
