// Package httpfetch implements [repodata.Fetcher] over HTTP/HTTPS, with
// ETag-based revalidation, request rate limiting (one limiter per Fetcher,
// shared by every host), proxy support, and
// bounded exponential-backoff retry on transient failures.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/time/rate"

	"github.com/condacore/conda-core/repodata"
)

// Fetcher is an HTTP-backed repodata.Fetcher.
type Fetcher struct {
	Client        *http.Client
	Limiter       *rate.Limiter // per-process request pacing; nil disables limiting
	MaxRetries    int           // remote_max_retries config knob, default 3
	BackoffFactor time.Duration // remote_backoff_factor config knob, default 1s

	// sleep is overridable in tests to avoid real delays.
	sleep func(context.Context, time.Duration) error
}

// New constructs a Fetcher honoring the given per-scheme proxy
// configuration (the proxy_servers config knob), e.g. {"http": "http://proxy:3128"}.
func New(proxyServers map[string]string, maxRetries int, backoffFactor time.Duration) *Fetcher {
	pc := &httpproxy.Config{
		HTTPProxy:  proxyServers["http"],
		HTTPSProxy: proxyServers["https"],
		NoProxy:    proxyServers["no_proxy"],
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return pc.ProxyFunc()(req.URL)
		},
	}
	return &Fetcher{
		Client:        &http.Client{Transport: transport},
		Limiter:       rate.NewLimiter(rate.Limit(20), 5),
		MaxRetries:    maxRetries,
		BackoffFactor: backoffFactor,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch implements repodata.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, prev repodata.Fingerprint) (io.ReadCloser, repodata.Fingerprint, string, error) {
	var lastErr error
	attempts := f.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := f.BackoffFactor * time.Duration(math.Pow(2, float64(attempt-1)))
			if err := f.sleepFn()(ctx, backoff); err != nil {
				return nil, "", "", err
			}
		}
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return nil, "", "", err
			}
		}
		body, fp, cacheControl, retryable, err := f.attempt(ctx, rawURL, prev)
		switch {
		case err == nil:
			return body, fp, cacheControl, nil
		case !retryable:
			return nil, "", "", err
		default:
			lastErr = err
		}
	}
	return nil, "", "", fmt.Errorf("repodata: fetching %s: exhausted retries: %w", rawURL, lastErr)
}

func (f *Fetcher) sleepFn() func(context.Context, time.Duration) error {
	if f.sleep != nil {
		return f.sleep
	}
	return sleepCtx
}

// attempt performs a single HTTP round trip and classifies the outcome:
// a transient failure (timeout, 5xx, 429) is retryable; everything else
// (4xx other than 429, success, not-modified) is terminal.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, prev repodata.Fingerprint) (body io.ReadCloser, fp repodata.Fingerprint, cacheControl string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", false, err
	}
	if prev != "" {
		req.Header.Set("If-None-Match", string(prev))
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", "", true, fmt.Errorf("repodata: GET %s: %w", rawURL, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, repodata.Fingerprint(resp.Header.Get("ETag")), resp.Header.Get("Cache-Control"), false, nil
	case http.StatusNotModified:
		resp.Body.Close()
		return nil, prev, resp.Header.Get("Cache-Control"), false, repodata.ErrUnchanged
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, "", "", true, fmt.Errorf("repodata: GET %s: status %d", rawURL, resp.StatusCode)
	default:
		resp.Body.Close()
		retryable := resp.StatusCode >= 500
		return nil, "", "", retryable, fmt.Errorf("repodata: GET %s: status %d", rawURL, resp.StatusCode)
	}
}

var _ repodata.Fetcher = (*Fetcher)(nil)
