// Package repodata implements conda's repodata acquisition subsystem: for
// each active (channel, subdir), it fetches, caches, and parses channel
// metadata into PackageRecord collections, injects virtual packages, and
// supports a fully offline mode.
package repodata

import (
	"context"
	"errors"
	"io"
)

// Fingerprint is opaque, fetcher-specific state that identifies the
// content previously retrieved for a URL — typically an ETag or
// Last-Modified value. An empty Fingerprint means "nothing cached yet."
//
// The same fingerprint-gated fetch shape applies directly to repodata's
// ETag/If-Modified-Since revalidation protocol.
type Fingerprint string

// ErrUnchanged is returned by a Fetcher when the server confirms the
// content named by the given Fingerprint is still current (HTTP 304).
var ErrUnchanged = errors.New("repodata: contents unchanged")

// Fetcher retrieves repodata documents by URL (package archives go through
// transaction.ArchiveFetcher instead). One
// Fetcher implementation exists per URL scheme (http/https, file); dispatch
// is by scheme.
type Fetcher interface {
	// Fetch returns the content at url along with a Fingerprint
	// identifying it, and the Cache-Control/max-age header value if any
	// was sent. If prev is non-empty and the server reports the content
	// hasn't changed, Fetch returns ErrUnchanged.
	Fetch(ctx context.Context, url string, prev Fingerprint) (body io.ReadCloser, fp Fingerprint, cacheControl string, err error)
}

// dispatch selects a Fetcher by the URL's scheme.
type dispatch struct {
	http Fetcher
	file Fetcher
}

func (d dispatch) forScheme(scheme string) (Fetcher, error) {
	switch scheme {
	case "http", "https":
		if d.http == nil {
			return nil, errors.New("repodata: no http fetcher configured")
		}
		return d.http, nil
	case "file", "":
		if d.file == nil {
			return nil, errors.New("repodata: no file fetcher configured")
		}
		return d.file, nil
	default:
		return nil, errors.New("repodata: unsupported URL scheme " + scheme)
	}
}
