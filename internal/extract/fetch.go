// Package extract fetches the raw country document and persists it
// unmodified before any parsing. Retry/backoff policy belongs to whatever
// harness schedules runs, not here: one attempt, one raw file.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"countryetl/internal/metrics"
)

// Fetcher performs raw document fetches. The zero value uses
// http.DefaultClient and time.Now; tests inject their own.
type Fetcher struct {
	Client *http.Client
	Now    func() time.Time

	// Job tags metrics emitted for each request.
	Job string
}

// Fetch GETs rawURL and streams the body into dst, returning the byte count.
//
// Any non-2xx status is an error carrying the status code; the body is not
// written in that case, so a failed fetch never clobbers a previous raw
// file with an error page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	now := f.Now
	if now == nil {
		now = time.Now
	}

	start := now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordHTTP(f.Job, 0, err, now().Sub(start), -1, -1)
		return 0, fmt.Errorf("extract: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	reqDur := now().Sub(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("extract: fetch %s: unexpected status %d", rawURL, resp.StatusCode)
		metrics.RecordHTTP(f.Job, resp.StatusCode, statusErr, reqDur, -1, -1)
		return 0, statusErr
	}

	n, err := io.Copy(dst, resp.Body)
	respDur := now().Sub(start)
	if err != nil {
		metrics.RecordHTTP(f.Job, resp.StatusCode, err, reqDur, respDur, n)
		return n, fmt.Errorf("extract: read body of %s: %w", rawURL, err)
	}

	metrics.RecordHTTP(f.Job, resp.StatusCode, nil, reqDur, respDur, n)
	return n, nil
}

// FetchToFile fetches rawURL into path. The body is written to a temp file
// in the same directory and renamed into place, so a crashed or failed run
// never leaves a truncated raw document behind.
func (f *Fetcher) FetchToFile(ctx context.Context, rawURL, path string, timeout time.Duration) (int64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("extract: create raw dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("extract: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	n, err := f.Fetch(ctx, rawURL, tmp)
	if err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("extract: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("extract: move raw file into place: %w", err)
	}
	return n, nil
}
