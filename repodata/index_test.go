package repodata

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/store"
)

const samplePackagesJSON = `{
  "info": {"subdir": "linux-64"},
  "packages": {
    "scipy-0.11.0-np17py27_0.tar.bz2": {
      "name": "scipy",
      "version": "0.11.0",
      "build": "np17py27_0",
      "build_number": 0,
      "depends": ["numpy"],
      "md5": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
    }
  },
  "packages.conda": {}
}`

// fakeFetcher serves a fixed body once per URL, then reports ErrUnchanged
// on any subsequent call carrying a non-empty prior fingerprint.
type fakeFetcher struct {
	body  string
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, prev Fingerprint) (io.ReadCloser, Fingerprint, string, error) {
	f.calls++
	if prev == "v1" {
		return nil, "", "", ErrUnchanged
	}
	return io.NopCloser(strings.NewReader(f.body)), "v1", "", nil
}

type erroringFetcher struct{ err error }

func (f *erroringFetcher) Fetch(ctx context.Context, url string, prev Fingerprint) (io.ReadCloser, Fingerprint, string, error) {
	return nil, "", "", f.err
}

func newMemCache(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChannel() condacore.Channel {
	return condacore.Channel{Name: "defaults", BaseURLs: []string{"https://repo.example.com/defaults"}}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	cache := newMemCache(t)
	fetcher := &fakeFetcher{body: samplePackagesJSON}
	r := &Resolver{HTTP: fetcher, Cache: cache}

	idx, err := r.Resolve(context.Background(), []condacore.Channel{testChannel()}, condacore.SubdirLinux64, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// QuerySet(linux-64) also queries noarch, and the fake serves the same
	// document at both URLs, so each contributes one scipy record.
	if len(idx.Records) != 2 {
		t.Fatalf("want 2 records, got %d", len(idx.Records))
	}
	if idx.Records[0].Name != "scipy" {
		t.Fatalf("want scipy, got %s", idx.Records[0].Name)
	}
	if fetcher.calls == 0 {
		t.Fatal("expected at least one fetch call")
	}
}

func TestResolveUsesFreshCacheWithoutFetching(t *testing.T) {
	cache := newMemCache(t)
	fetcher := &fakeFetcher{body: samplePackagesJSON}
	r := &Resolver{HTTP: fetcher, Cache: cache}
	ctx := context.Background()
	ch := testChannel()

	if _, err := r.Resolve(ctx, []condacore.Channel{ch}, condacore.SubdirLinux64, Options{}); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	firstCalls := fetcher.calls

	idx, err := r.Resolve(ctx, []condacore.Channel{ch}, condacore.SubdirLinux64, Options{LocalRepodataTTL: 3600})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if fetcher.calls != firstCalls {
		t.Fatalf("expected no new fetch calls, had %d now %d", firstCalls, fetcher.calls)
	}
	if len(idx.Records) != 2 {
		t.Fatalf("want 2 records from cache (linux-64 and noarch), got %d", len(idx.Records))
	}
}

func TestResolveOfflineUsesCacheOnly(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()
	ch := testChannel()
	_ = cache.Put(ctx, store.CacheEntry{
		URL:       ch.URL(condacore.SubdirLinux64) + "repodata.json",
		FetchedAt: time.Now().UTC(),
		Body:      []byte(`[{"Name":"numpy","Version":"1.7.0"}]`),
	})

	r := &Resolver{HTTP: &erroringFetcher{err: io.ErrClosedPipe}, Cache: cache}
	idx, err := r.Resolve(ctx, []condacore.Channel{ch}, condacore.SubdirLinux64, Options{Offline: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(idx.Records) != 1 || idx.Records[0].Name != "numpy" {
		t.Fatalf("want cached numpy record, got %+v", idx.Records)
	}
}

func TestResolveFallsBackToStaleCacheOnFetchError(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()
	ch := testChannel()
	_ = cache.Put(ctx, store.CacheEntry{
		URL:       ch.URL(condacore.SubdirLinux64) + "repodata.json",
		FetchedAt: time.Now().UTC().Add(-48 * time.Hour),
		Body:      []byte(`[{"Name":"numpy","Version":"1.7.0"}]`),
	})

	r := &Resolver{HTTP: &erroringFetcher{err: io.ErrClosedPipe}, Cache: cache}
	idx, err := r.Resolve(ctx, []condacore.Channel{ch}, condacore.SubdirLinux64, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(idx.Records) != 1 || idx.Records[0].Name != "numpy" {
		t.Fatalf("want stale-cache fallback to numpy record, got %+v", idx.Records)
	}
}

func TestResolveSkipsUnknownChannel(t *testing.T) {
	r := &Resolver{HTTP: &erroringFetcher{err: io.ErrClosedPipe}}
	unknown := condacore.Channel{Name: condacore.UnknownChannel}
	idx, err := r.Resolve(context.Background(), []condacore.Channel{unknown}, condacore.SubdirLinux64, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(idx.Records) != 0 {
		t.Fatalf("want no records for an unknown channel, got %d", len(idx.Records))
	}
}

func TestIndexInjectVirtualPackagesAndByName(t *testing.T) {
	idx := &Index{Records: []condacore.PackageRecord{{Name: "scipy"}, {Name: "scipy"}, {Name: "numpy"}}}
	idx.InjectVirtualPackages([]condacore.VirtualPackage{{Name: "__glibc", Version: "2.17"}}, condacore.SubdirLinux64)

	byName := idx.ByName()
	if len(byName["scipy"]) != 2 {
		t.Fatalf("want 2 scipy records, got %d", len(byName["scipy"]))
	}
	if len(byName["__glibc"]) != 1 {
		t.Fatalf("want 1 __glibc record, got %d", len(byName["__glibc"]))
	}
}
