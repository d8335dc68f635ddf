package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize is the response body limit used when none is configured.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// Request describes a single GET issued on behalf of the engine.
type Request struct {
	// URL is the absolute URL to fetch.
	URL string

	// UserAgent is sent as the User-Agent header when non-empty.
	UserAgent string

	// Header holds extra request headers.
	Header http.Header

	// MaxBodySize overrides the fetcher's body limit when positive.
	MaxBodySize int64
}

// Response is a fully read HTTP response.
type Response struct {
	// URL is the requested URL. Redirects are not followed; a 3xx response
	// is returned as is with its Location header.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the (possibly truncated) response body.
	Body []byte

	// Truncated reports whether the body hit the size limit.
	Truncated bool

	// Duration is the time from sending the request to finishing the body read.
	Duration time.Duration
}

// ContentType returns the Content-Type header of the response.
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Fetcher performs HTTP GET requests.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) (*Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPFetcher implements Fetcher on top of an *http.Client.
type HTTPFetcher struct {
	// client performs the requests. Its transport decides direct, proxied or Tor routing.
	client *http.Client

	// maxBodySize limits how many body bytes are read.
	maxBodySize int64

	// header is added to every request.
	header http.Header
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeaders adds static headers (cookies, auth) to every request.
func WithHeaders(headers map[string]string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.header.Set(k, v)
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client is replaced with
// http.DefaultClient. The fetcher uses a copy of client that never follows
// redirects.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = noFollow
	f := &HTTPFetcher{
		client:      &c,
		maxBodySize: DefaultMaxBodySize,
		header:      make(http.Header),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET request and reads the body up to the configured limit.
// Non-2xx responses are returned without error; the caller classifies them.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if req.URL == "" {
		return nil, ErrEmptyURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, vs := range f.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	}

	limit := f.maxBodySize
	if req.MaxBodySize > 0 {
		limit = req.MaxBodySize
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read one byte past the limit to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Truncated:  truncated,
		Duration:   time.Since(start),
	}, nil
}
