// Package store persists the repodata cache: the parsed body of a
// channel/subdir's repodata document keyed by URL, along with the ETag,
// Last-Modified, and fetch-timestamp metadata needed to revalidate it.
// The default backend is an embedded SQLite database (appropriate for a
// per-user, possibly offline, cache); an optional Postgres backend
// serves shared multi-host package caches.
package store

import (
	"context"
	"time"
)

// schemaVersion is bumped whenever CacheEntry's on-disk shape changes.
// Entries written by an older/newer schema are corrupt by definition and
// are quietly discarded and refetched.
const schemaVersion = 1

// CacheEntry is one cached repodata document.
type CacheEntry struct {
	URL           string
	ETag          string
	LastModified  string
	CacheControl  string
	FetchedAt     time.Time
	SchemaVersion int
	Body          []byte // the parsed PackageRecord collection, JSON-encoded
}

// RepodataCache reads and writes cached repodata documents keyed by URL.
type RepodataCache interface {
	// Get returns the cached entry for url, or ok=false if absent or if
	// its schema_version doesn't match the current schemaVersion (treated
	// as corrupt and reported as absent, never returned to the caller).
	Get(ctx context.Context, url string) (entry CacheEntry, ok bool, err error)
	// Put stores or replaces the cache entry for entry.URL.
	Put(ctx context.Context, entry CacheEntry) error
	// Delete evicts the cache entry for url. Get calls it to drop an entry
	// whose schema_version does not match; no integrity check on cached
	// content calls it, and no retry follows an eviction.
	Delete(ctx context.Context, url string) error
	// Close releases any resources (database handles) held by the store.
	Close() error
}
