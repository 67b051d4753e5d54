package epub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultFetchTimeout bounds a single archive download.
const DefaultFetchTimeout = 60 * time.Second

// maxArchiveSize bounds the downloaded archive held in memory.
const maxArchiveSize int64 = 256 * 1024 * 1024

// Fetcher retrieves a whole archive into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher downloads archives with a single GET per call.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher creates a fetcher bounded by timeout (DefaultFetchTimeout when <= 0).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Fetch performs the download. Transport failures, non-2xx statuses and
// deadline expiry are all reported as ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrFetch, f.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(data)) > maxArchiveSize {
		return nil, fmt.Errorf("%w: archive exceeds %d bytes", ErrFetch, maxArchiveSize)
	}
	return data, nil
}

// CacheBustURL appends a retry counter to defeat intermediate caches on a
// repeated fetch. Signed URLs are returned untouched because extra query
// parameters would invalidate the signature.
func CacheBustURL(rawURL string, attempt int) string {
	if attempt <= 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") != "" || q.Get("token") != "" {
		return rawURL
	}
	q.Set("retry", strconv.Itoa(attempt))
	u.RawQuery = q.Encode()
	return u.String()
}
