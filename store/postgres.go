package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTablePostgres = `
CREATE TABLE IF NOT EXISTS repodata_cache (
	url            TEXT PRIMARY KEY,
	etag           TEXT NOT NULL DEFAULT '',
	last_modified  TEXT NOT NULL DEFAULT '',
	cache_control  TEXT NOT NULL DEFAULT '',
	fetched_at     BIGINT NOT NULL,
	schema_version INTEGER NOT NULL,
	body           BYTEA NOT NULL
)`

// Postgres is an optional shared RepodataCache backend, for deployments
// that point several hosts' package managers at one cache (caching is
// otherwise per-user by default), using a pgx/v5 connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

// ConnectPostgres opens a pooled connection and ensures the schema exists.
func ConnectPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("store: connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTablePostgres); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}
	return &Postgres{pool: pool, dialect: goqu.Dialect("postgres")}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Get(ctx context.Context, url string) (CacheEntry, bool, error) {
	query, args, err := p.dialect.From("repodata_cache").
		Select("url", "etag", "last_modified", "cache_control", "fetched_at", "schema_version", "body").
		Where(goqu.Ex{"url": url}).
		ToSQL()
	if err != nil {
		return CacheEntry{}, false, err
	}
	var e CacheEntry
	var fetchedAtUnix int64
	row := p.pool.QueryRow(ctx, query, args...)
	switch err := row.Scan(&e.URL, &e.ETag, &e.LastModified, &e.CacheControl, &fetchedAtUnix, &e.SchemaVersion, &e.Body); {
	case errors.Is(err, pgx.ErrNoRows):
		return CacheEntry{}, false, nil
	case err != nil:
		return CacheEntry{}, false, fmt.Errorf("store: reading cache entry: %w", err)
	}
	e.FetchedAt = time.UnixMilli(fetchedAtUnix).UTC()
	if e.SchemaVersion != schemaVersion {
		_ = p.Delete(ctx, url)
		return CacheEntry{}, false, nil
	}
	return e, true, nil
}

func (p *Postgres) Put(ctx context.Context, e CacheEntry) error {
	e.SchemaVersion = schemaVersion
	if e.FetchedAt.IsZero() {
		return fmt.Errorf("store: CacheEntry.FetchedAt must be set")
	}
	query, args, err := p.dialect.Insert("repodata_cache").
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
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("store: writing cache entry: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, url string) error {
	query, args, err := p.dialect.Delete("repodata_cache").Where(goqu.Ex{"url": url}).ToSQL()
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("store: deleting cache entry: %w", err)
	}
	return nil
}
