package httpfetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/condacore/conda-core/transaction"
)

// FetchArchive implements transaction.ArchiveFetcher over http(s),
// sharing Fetcher's retry/backoff/rate-limiting configuration with
// Fetch. Archive downloads have no revalidation fingerprint to send:
// each URL names an immutable, content-addressed artifact.
func (f *Fetcher) FetchArchive(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	var lastErr error
	attempts := f.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := f.BackoffFactor * time.Duration(math.Pow(2, float64(attempt-1)))
			if err := f.sleepFn()(ctx, backoff); err != nil {
				return nil, 0, err
			}
		}
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return nil, 0, err
			}
		}
		body, size, retryable, err := f.attemptArchive(ctx, rawURL)
		switch {
		case err == nil:
			return body, size, nil
		case !retryable:
			return nil, 0, err
		default:
			lastErr = err
		}
	}
	return nil, 0, fmt.Errorf("transaction: fetching %s: exhausted retries: %w", rawURL, lastErr)
}

func (f *Fetcher) attemptArchive(ctx context.Context, rawURL string) (body io.ReadCloser, contentLength int64, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, false, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, true, fmt.Errorf("transaction: GET %s: %w", rawURL, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, resp.ContentLength, false, nil
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, 0, true, fmt.Errorf("transaction: GET %s: status %d", rawURL, resp.StatusCode)
	default:
		resp.Body.Close()
		retryable := resp.StatusCode >= 500
		return nil, 0, retryable, fmt.Errorf("transaction: GET %s: status %d", rawURL, resp.StatusCode)
	}
}

var _ transaction.ArchiveFetcher = (*Fetcher)(nil)
