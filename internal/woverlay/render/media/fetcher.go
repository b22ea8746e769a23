// Package media fetches sound and video clips named by notifications
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
)

const (
	// DefaultBaseURL is where relative clip names are resolved
	DefaultBaseURL = "http://127.0.0.1:40000/"

	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 10 * time.Second

	// maxAssetSize caps how much of a response body is read
	maxAssetSize = 64 << 20
)

// Asset is a fetched clip
type Asset struct {
	URL         string
	ContentType string
	Data        []byte
}

// Fetcher loads clips by reference
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Asset, error)
}

// HTTPFetcher fetches clips over HTTP
type HTTPFetcher struct {
	base       *url.URL
	httpClient *http.Client
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the per-fetch timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// NewHTTPFetcher creates a fetcher resolving relative references against baseURL
func NewHTTPFetcher(baseURL string, options ...FetcherOption) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid media base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid media base URL %q: scheme must be http or https", baseURL)
	}

	f := &HTTPFetcher{
		base:       u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

// Resolve returns the absolute URL for ref
func (f *HTTPFetcher) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return f.base.ResolveReference(r).String(), nil
}

// Fetch downloads ref. Any failure wraps ErrMediaUnavailable.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (*Asset, error) {
	const op = "media.Fetch"

	target, err := f.Resolve(ref)
	if err != nil {
		return nil, unavailable(op, fmt.Sprintf("invalid reference %q", ref), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, unavailable(op, "error creating request", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(op, fmt.Sprintf("error fetching %s", target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(op, fmt.Sprintf("fetching %s: %s", target, resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, unavailable(op, fmt.Sprintf("error reading %s", target), err)
	}

	return &Asset{
		URL:         target,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func unavailable(op, msg string, cause error) error {
	err := werrors.ErrMediaUnavailable
	if cause != nil {
		err = fmt.Errorf("%w: %w", werrors.ErrMediaUnavailable, cause)
	}
	return werrors.NewError("MEDIA_UNAVAILABLE", msg, op, err)
}
