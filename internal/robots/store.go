package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/politecrawl/internal/metrics"
	"github.com/nao1215/politecrawl/internal/transport"
)

// Store defaults.
const (
	DefaultTTL          = 24 * time.Hour
	DefaultFailureTTL   = 5 * time.Minute
	DefaultGracePeriod  = 10 * time.Second
	DefaultFetchTimeout = 30 * time.Second

	// MaxRobotsSize is the number of robots.txt bytes parsed; the rest is ignored.
	MaxRobotsSize int64 = 500 * 1024

	// maxRobotsRedirects is the number of robots.txt redirects followed.
	maxRobotsRedirects = 5
)

// entry is a cached policy with the time it was stored and how long it stays fresh.
type entry struct {
	policy   *Policy
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) fresh(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Store caches one policy per host and refreshes stale entries through a
// single in-flight fetch per host. It is safe for concurrent use.
type Store struct {
	fetcher     transport.Fetcher
	userAgent   string
	ttl         time.Duration
	failureTTL  time.Duration
	grace       time.Duration
	timeout     time.Duration
	maxBodySize int64
	parseOpts   []Option
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	// flights holds the in-progress refresh per host.
	flights singleflight.Group
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets how long a fetched policy is used before refreshing.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFailureTTL sets how long a fallback policy is used before retrying.
func WithFailureTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.failureTTL = ttl
		}
	}
}

// WithGracePeriod sets how long a caller waits for an in-flight refresh
// before falling back to the stale or conservative policy.
func WithGracePeriod(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithFetchTimeout bounds a single robots.txt fetch.
func WithFetchTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent when fetching robots.txt and the
// default agent of parsed policies.
func WithUserAgent(ua string) StoreOption {
	return func(s *Store) {
		s.userAgent = ua
	}
}

// WithParseOptions sets the options passed to Parse for fetched files.
func WithParseOptions(opts ...Option) StoreOption {
	return func(s *Store) {
		s.parseOpts = append(s.parseOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store that retrieves robots.txt through fetcher.
func NewStore(fetcher transport.Fetcher, opts ...StoreOption) *Store {
	s := &Store{
		fetcher:     fetcher,
		ttl:         DefaultTTL,
		failureTTL:  DefaultFailureTTL,
		grace:       DefaultGracePeriod,
		timeout:     DefaultFetchTimeout,
		maxBodySize: MaxRobotsSize,
		logger:      slog.Default(),
		now:         time.Now,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy for host, refreshing it when missing or stale.
//
// Callers that find a refresh already running wait for it rather than
// fetching again. A caller that waits longer than the grace period gets the
// stale policy, or DenyAll when none is cached; the refresh keeps running
// and updates the cache. The only error is a cancelled ctx or an empty host.
func (s *Store) Policy(ctx context.Context, scheme, host string) (*Policy, error) {
	if host == "" {
		return nil, ErrEmptyHost
	}
	if scheme == "" {
		scheme = "https"
	}

	cached := s.lookup(host)
	if cached != nil && cached.fresh(s.now()) {
		s.metrics.RecordRobotsCache("hit")
		return cached.policy, nil
	}
	if cached == nil {
		s.metrics.RecordRobotsCache("miss")
	} else {
		s.metrics.RecordRobotsCache("stale")
	}

	ch := s.flights.DoChan(host, func() (any, error) {
		return s.refresh(scheme, host), nil
	})

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case res := <-ch:
		policy, ok := res.Val.(*Policy)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected refresh result", ErrRobotsFetch, host)
		}
		return policy, nil
	case <-timer.C:
		s.metrics.RecordRobotsCache("grace")
		if cached != nil {
			s.logger.Debug("robots.txt refresh still running, using stale policy", "host", host)
			return cached.policy, nil
		}
		s.logger.Warn("robots.txt refresh still running, denying until it completes", "host", host)
		return DenyAll(host), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached policy for host.
func (s *Store) Invalidate(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, host)
}

// Len returns the number of cached hosts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Cached returns the cached policy for host without refreshing it.
func (s *Store) Cached(host string) (*Policy, bool) {
	e := s.lookup(host)
	if e == nil {
		return nil, false
	}
	return e.policy, true
}

func (s *Store) lookup(host string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[host]
}

func (s *Store) save(host string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[host] = e
}

// refresh fetches and stores the policy for host. It runs inside the
// host's flight, detached from any caller context.
func (s *Store) refresh(scheme, host string) *Policy {
	now := s.now()

	// A flight that finished just before this one started may already have
	// stored a fresh policy.
	previous := s.lookup(host)
	if previous != nil && previous.fresh(now) {
		return previous.policy
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, err := s.fetchRobots(ctx, fmt.Sprintf("%s://%s/robots.txt", scheme, host))

	switch {
	case err != nil:
		return s.fallback(host, previous, now, fmt.Errorf("%w: %s: %w", ErrRobotsFetch, host, err))

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return s.fallback(host, previous, now, fmt.Errorf("%w: %s: status %d", ErrRobotsFetch, host, resp.StatusCode))

	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		s.metrics.RecordRobotsFetch("ok")
		policy := Parse(string(resp.Body), s.userAgent, s.parseOpts...).clone(host, now, s.ttl, SourceFetched)
		s.save(host, &entry{policy: policy, storedAt: now, ttl: s.ttl})
		s.logger.Debug("robots.txt fetched",
			"host", host,
			"groups", len(policy.Groups),
			"sitemaps", len(policy.Sitemaps),
			"truncated", resp.Truncated,
		)
		return policy

	default:
		// 4xx and redirect chains longer than maxRobotsRedirects mean there
		// is no robots.txt to honour.
		s.metrics.RecordRobotsFetch("not_found")
		policy := AllowAll(host).clone(host, now, s.ttl, SourceNotFound)
		s.save(host, &entry{policy: policy, storedAt: now, ttl: s.ttl})
		s.logger.Debug("robots.txt not available, allowing all", "host", host, "status", resp.StatusCode)
		return policy
	}
}

// fetchRobots requests robots.txt at rawURL, following up to
// maxRobotsRedirects redirects. The last response is returned when the chain
// is longer.
func (s *Store) fetchRobots(ctx context.Context, rawURL string) (*transport.Response, error) {
	for hop := 0; ; hop++ {
		resp, err := s.fetcher.Fetch(ctx, transport.Request{
			URL:         rawURL,
			UserAgent:   s.userAgent,
			Header:      http.Header{"Accept": []string{"text/plain"}},
			MaxBodySize: s.maxBodySize,
		})
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, transport.ErrNoResponse
		}
		if hop >= maxRobotsRedirects || !isRedirect(resp.StatusCode) {
			return resp, nil
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return resp, nil
		}
		base, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		next, err := base.Parse(loc)
		if err != nil || (next.Scheme != "http" && next.Scheme != "https") {
			return resp, nil
		}
		rawURL = next.String()
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// fallback keeps the previous policy, or stores DenyAll, for FailureTTL.
func (s *Store) fallback(host string, previous *entry, now time.Time, cause error) *Policy {
	s.metrics.RecordRobotsFetch("error")

	policy := DenyAll(host).clone(host, now, s.failureTTL, SourceUnreachable)
	if previous != nil {
		policy = previous.policy
	}
	s.save(host, &entry{policy: policy, storedAt: now, ttl: s.failureTTL})

	s.logger.Warn("robots.txt unavailable, using fallback policy",
		"host", host,
		"source", string(policy.Source),
		"retry_in", s.failureTTL.String(),
		"error", cause,
	)
	return policy
}
