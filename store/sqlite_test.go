package store

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	entry := CacheEntry{
		URL:          "https://repo.example/linux-64/repodata.json",
		ETag:         `"abc123"`,
		LastModified: "Mon, 01 Jan 2024 00:00:00 GMT",
		FetchedAt:    time.Now().UTC().Truncate(time.Millisecond),
		Body:         []byte(`{"packages":{}}`),
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(ctx, entry.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ETag != entry.ETag || string(got.Body) != string(entry.Body) {
		t.Errorf("got %+v, want %+v", got, entry)
	}
}

func TestSQLiteGetMiss(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, ok, err := s.Get(ctx, "https://nowhere/repodata.json")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected cache miss")
	}
}

func TestSQLitePutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://repo.example/noarch/repodata.json"

	if err := s.Put(ctx, CacheEntry{URL: url, ETag: "v1", FetchedAt: time.Now(), Body: []byte("one")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, CacheEntry{URL: url, ETag: "v2", FetchedAt: time.Now(), Body: []byte("two")}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, url)
	if err != nil || !ok {
		t.Fatalf("ok=%t err=%v", ok, err)
	}
	if got.ETag != "v2" {
		t.Errorf("ETag = %q, want v2 (Put should overwrite)", got.ETag)
	}
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://repo.example/linux-64/repodata.json"
	if err := s.Put(ctx, CacheEntry{URL: url, FetchedAt: time.Now(), Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, url); err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.Get(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected cache miss after delete")
	}
}

func TestSQLiteDiscardsMismatchedSchemaVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://repo.example/linux-64/repodata.json"
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO repodata_cache (url, etag, last_modified, cache_control, fetched_at, schema_version, body) VALUES (?, '', '', '', ?, ?, ?)`,
		url, time.Now().UnixMilli(), schemaVersion+1, []byte("stale")); err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.Get(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("entry with mismatched schema_version should be treated as a cache miss")
	}
}
