package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/nao1215/politecrawl/internal/metrics"
	"github.com/nao1215/politecrawl/internal/ratelimit"
	"github.com/nao1215/politecrawl/internal/robots"
	"github.com/nao1215/politecrawl/internal/transport"
)

// DefaultRequestTimeout bounds a single content fetch.
const DefaultRequestTimeout = 30 * time.Second

// DefaultMaxRedirects is the number of redirects followed per fetch.
const DefaultMaxRedirects = 5

// RespectfulCrawler combines the robots policy store, the per-host rate
// limiter and an injected fetcher. It is safe for concurrent use; all
// per-host state lives in the store and the limiter.
type RespectfulCrawler struct {
	robots         *robots.Store
	limiter        *ratelimit.Limiter
	fetcher        transport.Fetcher
	respectRobots  bool
	requestTimeout time.Duration
	maxRedirects   int
	headers        func(host string) http.Header
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures a RespectfulCrawler.
type Option func(*RespectfulCrawler)

// WithRespectRobots enables or disables robots.txt checks. When disabled
// every outcome carries RobotsBypassed for auditing.
func WithRespectRobots(respect bool) Option {
	return func(c *RespectfulCrawler) {
		c.respectRobots = respect
	}
}

// WithRequestTimeout bounds each content fetch.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *RespectfulCrawler) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithMaxRedirects sets how many redirects a fetch follows. Zero follows none.
func WithMaxRedirects(n int) Option {
	return func(c *RespectfulCrawler) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithHostHeaders sets a function returning extra request headers for a host.
func WithHostHeaders(fn func(host string) http.Header) Option {
	return func(c *RespectfulCrawler) {
		c.headers = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *RespectfulCrawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RespectfulCrawler) {
		c.metrics = m
	}
}

// NewRespectfulCrawler creates a RespectfulCrawler. Robots checking is enabled by default.
func NewRespectfulCrawler(store *robots.Store, limiter *ratelimit.Limiter, fetcher transport.Fetcher, opts ...Option) *RespectfulCrawler {
	c := &RespectfulCrawler{
		robots:         store,
		limiter:        limiter,
		fetcher:        fetcher,
		respectRobots:  true,
		requestTimeout: DefaultRequestTimeout,
		maxRedirects:   DefaultMaxRedirects,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves rawURL on behalf of userAgent.
//
// A URL disallowed by robots.txt returns PolicyDenied without touching the
// limiter or the network. Otherwise Fetch waits up to maxWait for a rate
// limit slot (RateLimitTimeout when none is granted), performs one request
// and reports its outcome to the limiter. Redirects are followed hop by hop
// up to the configured limit; each hop passes the same robots and rate limit
// checks for its own host. Fetch never retries.
func (c *RespectfulCrawler) Fetch(ctx context.Context, rawURL, userAgent string, maxWait time.Duration) FetchOutcome {
	out := FetchOutcome{URL: rawURL, State: StatePending}

	u, host, err := ResolveURL(rawURL)
	if err != nil {
		return c.finish(out, NetworkError, StateFailed, err)
	}
	out.Host = host

	for {
		out.FinalURL = u.String()
		if status, state, err := c.admit(ctx, &out, u, host, userAgent, maxWait); err != nil {
			return c.finish(out, status, state, err)
		}

		out.State = StateFetching
		status, limiterOutcome, resp, err := c.do(ctx, u, host, userAgent)
		c.limiter.Release(host, limiterOutcome)
		out.Response = resp
		if err != nil {
			return c.finish(out, status, StateFailed, err)
		}

		next, ok := redirectTarget(u, resp)
		if !ok {
			return c.finish(out, status, StateSucceeded, nil)
		}
		if out.Redirects >= c.maxRedirects {
			return c.finish(out, NetworkError, StateFailed, fmt.Errorf("%w: %s", ErrTooManyRedirects, rawURL))
		}
		u, host, err = ResolveURL(next)
		if err != nil {
			return c.finish(out, NetworkError, StateFailed, err)
		}
		out.Redirects++
		c.logger.Debug("following redirect", "url", rawURL, "location", u.String(), "hop", out.Redirects)
	}
}

// admit runs the robots check for u and waits for a rate limit slot on host.
// On failure it returns the terminal status and state.
func (c *RespectfulCrawler) admit(ctx context.Context, out *FetchOutcome, u *url.URL, host, userAgent string, maxWait time.Duration) (Status, State, error) {
	if c.respectRobots {
		out.State = StatePolicyCheck
		policy, err := c.robots.Policy(ctx, u.Scheme, host)
		if err != nil {
			return NetworkError, StateFailed, err
		}
		if !policy.IsAllowed(RequestPath(u), userAgent) {
			return PolicyDenied, StateDenied, fmt.Errorf("%w: %s", ErrPolicyDenied, u.String())
		}
		delay, _ := policy.CrawlDelay(userAgent)
		c.limiter.SetCrawlDelay(host, delay)
	} else {
		out.RobotsBypassed = true
	}

	out.State = StateRateLimitWait
	permit, err := c.limiter.Acquire(ctx, host, maxWait)
	if err != nil {
		return RateLimitTimeout, StateTimedOut, err
	}
	out.Waited += permit.Waited
	if out.StartedAt.IsZero() {
		out.StartedAt = permit.GrantedAt
	}
	return Success, StateFetching, nil
}

// do performs the request and classifies its result.
func (c *RespectfulCrawler) do(ctx context.Context, u *url.URL, host, userAgent string) (Status, ratelimit.Outcome, *transport.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req := transport.Request{URL: u.String(), UserAgent: userAgent}
	if c.headers != nil {
		req.Header = c.headers(host)
	}
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return NetworkError, ratelimit.Error, nil, err
	}
	if resp == nil {
		return NetworkError, ratelimit.Error, nil, transport.ErrNoResponse
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusBadRequest:
		return Success, ratelimit.Success, resp, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return NetworkError, ratelimit.RateLimited, resp, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	default:
		return NetworkError, ratelimit.Error, resp, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
}

// redirectTarget returns the absolute Location of a redirect response.
func redirectTarget(u *url.URL, resp *transport.Response) (string, bool) {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return "", false
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", false
	}
	next, err := u.Parse(loc)
	if err != nil {
		return "", false
	}
	return next.String(), true
}

// finish fills the terminal fields and records the outcome.
func (c *RespectfulCrawler) finish(out FetchOutcome, status Status, state State, err error) FetchOutcome {
	out.Status = status
	out.State = state
	out.Err = err

	var duration time.Duration
	if out.Response != nil {
		duration = out.Response.Duration
	}
	c.metrics.RecordFetch(status.String(), duration)

	attrs := []any{
		"url", out.URL,
		"status", status.String(),
		"state", state.String(),
	}
	if out.Response != nil {
		attrs = append(attrs, "http_status", out.Response.StatusCode)
	}
	if out.Redirects > 0 {
		attrs = append(attrs, "final_url", out.FinalURL, "redirects", out.Redirects)
	}
	if out.RobotsBypassed {
		attrs = append(attrs, "robots_bypassed", true)
	}
	if err != nil && !errors.Is(err, ErrPolicyDenied) {
		attrs = append(attrs, "error", err)
	}
	c.logger.Debug("fetch finished", attrs...)

	return out
}

// ResolveURL parses rawURL and returns it with its normalized host: lower-case,
// IDNA ASCII form, port kept.
func ResolveURL(rawURL string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return nil, "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	ascii, err := asciiHost(strings.ToLower(hostname))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	host := ascii
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(ascii, port)
	}
	u.Host = host
	return u, host, nil
}

// asciiHost converts an internationalized host name to its ASCII form.
// IP literals and plain ASCII names that fail strict IDNA validation (for
// example names containing underscores) are kept as they are.
func asciiHost(hostname string) (string, error) {
	if net.ParseIP(hostname) != nil {
		return hostname, nil
	}
	ascii, err := idna.Lookup.ToASCII(hostname)
	if err == nil {
		return ascii, nil
	}
	for i := 0; i < len(hostname); i++ {
		if hostname[i] >= 0x80 {
			return "", err
		}
	}
	return hostname, nil
}

// RequestPath returns the path and query of u as matched against robots rules.
func RequestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
