package repodata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	condacore "github.com/condacore/conda-core"
	"github.com/condacore/conda-core/store"
)

// Options configures a Resolve call, threaded explicitly rather than
// read from process globals.
type Options struct {
	Filenames           []string // tried in order, default ["repodata.json.zst", "repodata.json.bz2", "repodata.json"]
	Offline             bool
	LocalRepodataTTL    int // seconds; -1 = respect server Cache-Control, 0 = always revalidate
	MaxConcurrentFetch  int // default 4
}

// Resolver fetches and caches repodata across channels and subdirs,
// producing the PackageRecord collections the solver indexes against.
type Resolver struct {
	HTTP  Fetcher
	File  Fetcher
	Cache store.RepodataCache
}

// Resolve fetches repodata for every channel in channels, for each of
// QuerySet(target) (the target subdir plus noarch), merging the results
// into a single Index. A (channel,subdir) whose fetch fails but that has a
// cache entry contributes the cached records instead; no warning is
// emitted. A failure with no cache at all is dropped when any other
// (channel,subdir) produced records; only when none did are the collected
// failures returned, as an ErrChannel error.
func (r *Resolver) Resolve(ctx context.Context, channels []condacore.Channel, target condacore.Subdir, opts Options) (*Index, error) {
	filenames := opts.Filenames
	if len(filenames) == 0 {
		filenames = defaultRepodataFilenames
	}
	maxConcurrent := opts.MaxConcurrentFetch
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	type task struct {
		channel condacore.Channel
		subdir  condacore.Subdir
	}
	var tasks []task
	for _, ch := range channels {
		for _, sd := range condacore.QuerySet(target) {
			tasks = append(tasks, task{channel: ch, subdir: sd})
		}
	}

	results := make([][]condacore.PackageRecord, len(tasks))
	var channelErrs []error
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		i, t := i, t
		if t.channel.IsUnknown() {
			continue // no base URL to fetch; records stay as previously cached only
		}
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			recs, err := r.resolveOne(gctx, t.channel, t.subdir, filenames, opts)
			if err != nil {
				channelErrs = append(channelErrs, err)
				return nil // degrade: collected, doesn't cancel siblings
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{}
	for _, recs := range results {
		idx.Records = append(idx.Records, recs...)
	}
	if len(channelErrs) > 0 && len(idx.Records) == 0 {
		return idx, &condacore.Error{Kind: condacore.ErrChannel, Op: "repodata.Resolve", Message: joinErrs(channelErrs)}
	}
	return idx, nil
}

func joinErrs(errs []error) string {
	var b strings.Builder
	for i, e := range errs {
		if i != 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// resolveOne fetches, caches, and parses a single (channel, subdir).
func (r *Resolver) resolveOne(ctx context.Context, channel condacore.Channel, subdir condacore.Subdir, filenames []string, opts Options) ([]condacore.PackageRecord, error) {
	baseURL := channel.URL(subdir)
	cacheKey := baseURL + "repodata.json"

	var cached store.CacheEntry
	var haveCache bool
	if r.Cache != nil {
		var err error
		cached, haveCache, err = r.Cache.Get(ctx, cacheKey)
		if err != nil {
			return nil, fmt.Errorf("repodata: reading cache for %s: %w", cacheKey, err)
		}
	}

	if opts.Offline {
		if !haveCache {
			return nil, nil
		}
		return decodeCachedBody(cached.Body)
	}

	if haveCache && isFresh(cached, opts.LocalRepodataTTL) {
		return decodeCachedBody(cached.Body)
	}

	recs, fp, cacheControl, err := r.fetchAndParse(ctx, channel, subdir, baseURL, filenames, repodataFingerprint(cached))
	switch {
	case err == nil:
		if r.Cache != nil {
			body, mErr := json.Marshal(recs)
			if mErr == nil {
				_ = r.Cache.Put(ctx, store.CacheEntry{
					URL:          cacheKey,
					ETag:         string(fp),
					CacheControl: cacheControl,
					FetchedAt:    time.Now().UTC(),
					Body:         body,
				})
			}
		}
		return recs, nil
	case isUnchanged(err):
		if r.Cache != nil {
			cached.FetchedAt = time.Now().UTC()
			_ = r.Cache.Put(ctx, cached)
		}
		return decodeCachedBody(cached.Body)
	case haveCache:
		// Transient failure with a cache available: degrade to the stale
		// cache rather than failing the whole resolve. Retry/backoff
		// already ran for transient failures; once exhausted, a cache
		// hit is still usable.
		return decodeCachedBody(cached.Body)
	default:
		return nil, &condacore.Error{Kind: condacore.ErrChannel, Op: "repodata.resolveOne", Message: fmt.Sprintf("%s/%s", channel.Name, subdir), Inner: err}
	}
}

func repodataFingerprint(e store.CacheEntry) Fingerprint { return Fingerprint(e.ETag) }

func isUnchanged(err error) bool {
	for e := err; e != nil; {
		if e == ErrUnchanged {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// isFresh reports whether a cached entry is still valid per
// local_repodata_ttl semantics: -1 respects the server's Cache-Control
// max-age (falling back to ~24h if absent), 0 always revalidates, and a
// positive value is an explicit TTL in seconds.
func isFresh(e store.CacheEntry, ttl int) bool {
	switch {
	case ttl == 0:
		return false
	case ttl > 0:
		return time.Since(e.FetchedAt) < time.Duration(ttl)*time.Second
	default:
		if maxAge, ok := parseMaxAge(e.CacheControl); ok {
			return time.Since(e.FetchedAt) < time.Duration(maxAge)*time.Second
		}
		return time.Since(e.FetchedAt) < 24*time.Hour
	}
}

func parseMaxAge(cacheControl string) (int, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if rest, ok := strings.CutPrefix(directive, "max-age="); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func decodeCachedBody(body []byte) ([]condacore.PackageRecord, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var recs []condacore.PackageRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("repodata: decoding cached body: %w", err)
	}
	return recs, nil
}

// fetchAndParse tries each filename in order, stopping at the first one
// that is fetched, decompressed and parsed successfully, or at the first
// ErrUnchanged.
func (r *Resolver) fetchAndParse(ctx context.Context, channel condacore.Channel, subdir condacore.Subdir, baseURL string, filenames []string, prev Fingerprint) ([]condacore.PackageRecord, Fingerprint, string, error) {
	fetcher, err := r.fetcherFor(baseURL)
	if err != nil {
		return nil, "", "", err
	}

	var lastErr error
	for _, fn := range filenames {
		body, fp, cacheControl, err := fetcher.Fetch(ctx, baseURL+fn, prev)
		switch {
		case err == nil:
			defer body.Close()
			decoded, derr := decompress(fn, body)
			if derr != nil {
				lastErr = derr
				continue
			}
			defer decoded.Close()
			recs, perr := parseDocument(decoded, channel, subdir, baseURL)
			if perr != nil {
				lastErr = perr
				continue
			}
			return recs, fp, cacheControl, nil
		case err == ErrUnchanged:
			return nil, fp, cacheControl, ErrUnchanged
		default:
			lastErr = err
		}
	}
	return nil, "", "", lastErr
}

func (r *Resolver) fetcherFor(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("repodata: invalid URL %q: %w", rawURL, err)
	}
	d := dispatch{http: r.HTTP, file: r.File}
	return d.forScheme(u.Scheme)
}

// Index is the merged PackageRecord collection for one resolve, augmented
// with virtual packages before solving.
type Index struct {
	Records []condacore.PackageRecord
}

// InjectVirtualPackages appends one PackageRecord per detected virtual
// package, for the given target subdir.
func (idx *Index) InjectVirtualPackages(pkgs []condacore.VirtualPackage, subdir condacore.Subdir) {
	for _, p := range pkgs {
		idx.Records = append(idx.Records, *p.Record(subdir))
	}
}

// ByName groups records by package name, the shape the solver's index
// reduction consumes.
func (idx *Index) ByName() map[string][]condacore.PackageRecord {
	out := make(map[string][]condacore.PackageRecord, len(idx.Records))
	for i := range idx.Records {
		r := &idx.Records[i]
		out[r.Name] = append(out[r.Name], *r)
	}
	return out
}
