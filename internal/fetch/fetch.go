// Package fetch retrieves raw playlist text over HTTP.
//
// The fetcher does exactly one attempt per call; retry and fallback policy
// belongs to the catalog layer. It is polite to the upstream: requests are
// rate-limited per host, share the global per-host concurrency semaphore,
// and advertise gzip/brotli so GitHub Pages sends compressed bodies.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/mylivetv/catalogd/internal/httpclient"
	"github.com/mylivetv/catalogd/internal/safeurl"
)

const userAgent = "catalogd/1.0 (+livetv-catalog)"

// ErrNotModified is returned by FetchConditional when the server responds 304.
var ErrNotModified = errors.New("fetch: 304 not modified")

// NetworkError wraps any transport or HTTP-status failure from a fetch.
type NetworkError struct {
	URL    string
	Status int // non-zero when the server responded with a non-2xx status
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return "fetch " + e.URL + ": unexpected status " + strconv.Itoa(e.Status)
	}
	return "fetch " + e.URL + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Result carries the playlist body and cache-validator headers from a
// successful fetch.
type Result struct {
	Body         string
	ETag         string
	LastModified string
}

// Fetcher downloads playlist text. Safe for concurrent use.
type Fetcher struct {
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per host
	rps      rate.Limit
	burst    int
}

// New returns a Fetcher using client (httpclient.Default() if nil) with the
// given per-host request rate. perHostRPS <= 0 disables rate limiting.
func New(client *http.Client, perHostRPS float64) *Fetcher {
	if client == nil {
		client = httpclient.Default()
	}
	f := &Fetcher{
		client:   client,
		limiters: make(map[string]*rate.Limiter),
	}
	if perHostRPS > 0 {
		f.rps = rate.Limit(perHostRPS)
		f.burst = 1
	}
	return f
}

// Fetch downloads rawURL and returns the body text. Any failure is a
// *NetworkError wrapping the cause.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	res, err := f.FetchConditional(ctx, rawURL, "", "")
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// FetchConditional is Fetch with If-None-Match / If-Modified-Since validators.
// Returns ErrNotModified on 304. Empty validators degrade to a plain GET.
func (f *Fetcher) FetchConditional(ctx context.Context, rawURL, etag, lastModified string) (*Result, error) {
	if !safeurl.IsHTTPOrHTTPS(rawURL) {
		return nil, &NetworkError{URL: rawURL, Err: errors.New("unsupported URL scheme")}
	}
	if err := f.wait(ctx, rawURL); err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	release := httpclient.GlobalHostSem.Acquire(rawURL)
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{
			URL:    rawURL,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	return &Result{
		Body:         string(body),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// readBody decodes the response body per Content-Encoding. We set
// Accept-Encoding ourselves, so the transport does not auto-decompress.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

func (f *Fetcher) wait(ctx context.Context, rawURL string) error {
	if f.rps <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	f.mu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.rps, f.burst)
		f.limiters[host] = lim
	}
	f.mu.Unlock()
	return lim.Wait(ctx)
}
