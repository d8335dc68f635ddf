package ratelimit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/politecrawl/internal/metrics"
)

// Limiter defaults.
const (
	DefaultMinDelay          = time.Second
	DefaultMaxConcurrent     = 1
	DefaultBackoffMultiplier = 2.0
	DefaultMaxBackoff        = 5 * time.Minute
	DefaultDecaySteps        = 3
)

// Outcome classifies a finished request for Release.
type Outcome int

const (
	// Success is a completed request that needs no backoff.
	Success Outcome = iota
	// RateLimited is a request the server throttled (429, 503).
	RateLimited
	// Error is any other failed request.
	Error
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Permit is returned by a granted Acquire.
type Permit struct {
	// Host is the host the slot was granted for.
	Host string

	// GrantedAt is the recorded request start time.
	GrantedAt time.Time

	// Waited is how long Acquire blocked.
	Waited time.Duration
}

// HostState is a snapshot of one host's limiter state.
type HostState struct {
	Host                string
	LastRequestAt       time.Time
	CurrentDelay        time.Duration
	BaseDelay           time.Duration
	ConsecutiveFailures int
	InFlight            int
	Waiting             int
}

// waiter marks one pending Acquire in a host queue.
type waiter struct{}

// hostState is the mutable per-host state. All fields are guarded by mu.
type hostState struct {
	mu sync.Mutex

	host          string
	lastRequestAt time.Time
	baseDelay     time.Duration
	currentDelay  time.Duration
	failures      int
	// successes counts consecutive successes while the delay is above base.
	successes int
	inFlight  int

	// queue holds pending waiters in arrival order; only the head may be granted.
	queue []*waiter

	// changed is closed and replaced whenever the state changes.
	changed chan struct{}
}

// broadcast wakes every goroutine waiting on the host. Caller holds mu.
func (h *hostState) broadcast() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// remove drops w from the queue. Caller holds mu.
func (h *hostState) remove(w *waiter) {
	if i := slices.Index(h.queue, w); i >= 0 {
		h.queue = slices.Delete(h.queue, i, i+1)
	}
}

// Limiter is a per-host adaptive delay and concurrency gate.
// It is safe for concurrent use.
type Limiter struct {
	minDelay      time.Duration
	maxConcurrent int
	multiplier    float64
	maxBackoff    time.Duration
	decaySteps    int
	logger        *slog.Logger
	metrics       *metrics.Metrics

	hosts sync.Map // host -> *hostState
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMinDelay sets the minimum delay between request starts for a host.
func WithMinDelay(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.minDelay = d
		}
	}
}

// WithMaxConcurrent sets how many requests may be in flight per host.
func WithMaxConcurrent(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxConcurrent = n
		}
	}
}

// WithBackoffMultiplier sets the delay multiplier applied on failures.
func WithBackoffMultiplier(m float64) Option {
	return func(l *Limiter) {
		if m > 1 {
			l.multiplier = m
		}
	}
}

// WithMaxBackoff caps the delay reached through backoff.
func WithMaxBackoff(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.maxBackoff = d
		}
	}
}

// WithDecaySteps sets how many consecutive successes bring a backed-off
// delay back to the base delay.
func WithDecaySteps(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.decaySteps = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		minDelay:      DefaultMinDelay,
		maxConcurrent: DefaultMaxConcurrent,
		multiplier:    DefaultBackoffMultiplier,
		maxBackoff:    DefaultMaxBackoff,
		decaySteps:    DefaultDecaySteps,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// state returns the state for host, creating it on first use.
func (l *Limiter) state(host string) *hostState {
	if v, ok := l.hosts.Load(host); ok {
		return v.(*hostState) //nolint:forcetypeassert // only *hostState is stored
	}
	v, _ := l.hosts.LoadOrStore(host, &hostState{
		host:         host,
		baseDelay:    l.minDelay,
		currentDelay: l.minDelay,
		changed:      make(chan struct{}),
	})
	return v.(*hostState) //nolint:forcetypeassert // only *hostState is stored
}

// Acquire waits for permission to start a request to host.
//
// It returns when the host's current delay has elapsed since the previous
// grant, a concurrency slot is free and every earlier waiter has been served.
// If that does not happen within maxWait it returns ErrAcquireTimeout; if
// ctx ends first it returns ctx.Err(). In both cases nothing is recorded and
// no slot is held. A non-positive maxWait only grants immediately available slots.
func (l *Limiter) Acquire(ctx context.Context, host string, maxWait time.Duration) (Permit, error) {
	if host == "" {
		return Permit{}, ErrEmptyHost
	}
	if err := ctx.Err(); err != nil {
		return Permit{}, err
	}

	start := time.Now()
	deadline := start.Add(maxWait)
	h := l.state(host)
	w := &waiter{}

	h.mu.Lock()
	h.queue = append(h.queue, w)

	for {
		now := time.Now()
		var wakeAt time.Time

		if h.queue[0] == w && h.inFlight < l.maxConcurrent {
			earliest := h.lastRequestAt.Add(h.currentDelay)
			if h.lastRequestAt.IsZero() || !now.Before(earliest) {
				h.lastRequestAt = now
				h.inFlight++
				h.remove(w)
				h.broadcast()
				h.mu.Unlock()

				waited := now.Sub(start)
				l.metrics.RecordAcquire(true, waited)
				return Permit{Host: host, GrantedAt: now, Waited: waited}, nil
			}
			wakeAt = earliest
		}

		if !now.Before(deadline) {
			h.remove(w)
			h.broadcast()
			h.mu.Unlock()
			l.metrics.RecordAcquire(false, now.Sub(start))
			return Permit{}, ErrAcquireTimeout
		}

		changed := h.changed
		h.mu.Unlock()

		sleep := deadline.Sub(now)
		if !wakeAt.IsZero() && wakeAt.Sub(now) < sleep {
			sleep = wakeAt.Sub(now)
		}
		timer := time.NewTimer(sleep)

		select {
		case <-changed:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			h.mu.Lock()
			h.remove(w)
			h.broadcast()
			h.mu.Unlock()
			return Permit{}, ctx.Err()
		}
		timer.Stop()

		h.mu.Lock()
	}
}

// Release returns the slot taken by a granted Acquire and adapts the
// host delay to outcome.
func (l *Limiter) Release(host string, outcome Outcome) {
	h := l.state(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight > 0 {
		h.inFlight--
	}

	switch outcome {
	case RateLimited, Error:
		h.failures++
		h.successes = 0
		limit := max(l.maxBackoff, h.baseDelay)
		next := time.Duration(float64(h.currentDelay) * l.multiplier)
		if next > limit || next < h.currentDelay {
			next = limit
		}
		h.currentDelay = max(next, h.baseDelay)
		l.metrics.RecordBackoff(host, h.currentDelay)
		l.logger.Debug("host delay increased",
			"host", host,
			"outcome", outcome.String(),
			"delay", h.currentDelay.String(),
			"consecutive_failures", h.failures,
		)

	default:
		h.failures = 0
		if h.currentDelay > h.baseDelay {
			h.successes++
			if h.successes >= l.decaySteps {
				h.currentDelay = h.baseDelay
				h.successes = 0
			} else {
				h.currentDelay = h.baseDelay + (h.currentDelay-h.baseDelay)/2
			}
			l.metrics.SetHostDelay(host, h.currentDelay)
		} else {
			h.successes = 0
		}
	}

	h.broadcast()
}

// SetCrawlDelay applies a robots.txt Crawl-delay to host. The base delay
// becomes max(MinDelay, robotsDelay); a current delay below the new base is
// raised to it.
func (l *Limiter) SetCrawlDelay(host string, robotsDelay time.Duration) {
	h := l.state(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	base := max(l.minDelay, robotsDelay)
	if base == h.baseDelay {
		return
	}
	// Not backed off: follow the base directly.
	if h.currentDelay == h.baseDelay {
		h.currentDelay = base
	}
	h.baseDelay = base
	if h.currentDelay < base {
		h.currentDelay = base
	}
	l.metrics.SetHostDelay(host, h.currentDelay)
	h.broadcast()
}

// State returns a snapshot of host's state.
func (l *Limiter) State(host string) HostState {
	h := l.state(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	return HostState{
		Host:                h.host,
		LastRequestAt:       h.lastRequestAt,
		CurrentDelay:        h.currentDelay,
		BaseDelay:           h.baseDelay,
		ConsecutiveFailures: h.failures,
		InFlight:            h.inFlight,
		Waiting:             len(h.queue),
	}
}

// Snapshot returns the state of every known host sorted by host name.
func (l *Limiter) Snapshot() []HostState {
	var hosts []string
	l.hosts.Range(func(k, _ any) bool {
		hosts = append(hosts, k.(string)) //nolint:forcetypeassert // keys are strings
		return true
	})
	slices.Sort(hosts)

	states := make([]HostState, 0, len(hosts))
	for _, host := range hosts {
		states = append(states, l.State(host))
	}
	return states
}
