package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration prometheus.Histogram

	// Rate limiter metrics
	acquireWait     *prometheus.HistogramVec
	backoffsTotal   prometheus.Counter
	hostDelay       *prometheus.GaugeVec
	acquireTimeouts prometheus.Counter

	// Robots metrics
	robotsCache   *prometheus.CounterVec
	robotsFetches *prometheus.CounterVec

	// Privacy metrics
	privacyDecisions *prometheus.CounterVec
	retentionActions *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "politecrawl_fetches_total",
				Help: "Total number of fetch requests by outcome status",
			},
			[]string{"status"},
		),

		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "politecrawl_fetch_duration_seconds",
				Help:    "Network fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		acquireWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "politecrawl_ratelimit_wait_seconds",
				Help:    "Time spent waiting for a per-host rate limit slot",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"result"},
		),

		backoffsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "politecrawl_ratelimit_backoffs_total",
				Help: "Total number of delay increases caused by failed or throttled fetches",
			},
		),

		hostDelay: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "politecrawl_ratelimit_host_delay_seconds",
				Help: "Current effective delay per host",
			},
			[]string{"host"},
		),

		acquireTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "politecrawl_ratelimit_timeouts_total",
				Help: "Total number of acquire calls that gave up before a slot was granted",
			},
		),

		robotsCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "politecrawl_robots_cache_total",
				Help: "Robots policy lookups by cache result",
			},
			[]string{"result"},
		),

		robotsFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "politecrawl_robots_fetches_total",
				Help: "Robots.txt fetches by result",
			},
			[]string{"result"},
		),

		privacyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "politecrawl_privacy_decisions_total",
				Help: "Field compliance decisions by category and action",
			},
			[]string{"category", "action"},
		),

		retentionActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "politecrawl_retention_actions_total",
				Help: "Items affected by retention enforcement by action",
			},
			[]string{"action"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.fetchesTotal,
		m.fetchDuration,
		m.acquireWait,
		m.backoffsTotal,
		m.hostDelay,
		m.acquireTimeouts,
		m.robotsCache,
		m.robotsFetches,
		m.privacyDecisions,
		m.retentionActions,
	)

	return m
}

// RecordFetch records the terminal status of a fetch and, when the network
// was used, its duration.
func (m *Metrics) RecordFetch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		m.fetchDuration.Observe(duration.Seconds())
	}
}

// RecordAcquire records how long an acquire call waited and whether it was granted.
func (m *Metrics) RecordAcquire(granted bool, waited time.Duration) {
	if m == nil {
		return
	}
	result := "granted"
	if !granted {
		result = "timeout"
		m.acquireTimeouts.Inc()
	}
	m.acquireWait.WithLabelValues(result).Observe(waited.Seconds())
}

// RecordBackoff records a delay increase for host.
func (m *Metrics) RecordBackoff(host string, delay time.Duration) {
	if m == nil {
		return
	}
	m.backoffsTotal.Inc()
	m.hostDelay.WithLabelValues(host).Set(delay.Seconds())
}

// SetHostDelay updates the current delay gauge for host.
func (m *Metrics) SetHostDelay(host string, delay time.Duration) {
	if m == nil {
		return
	}
	m.hostDelay.WithLabelValues(host).Set(delay.Seconds())
}

// RecordRobotsCache records a policy lookup result (hit, miss, stale, grace).
func (m *Metrics) RecordRobotsCache(result string) {
	if m == nil {
		return
	}
	m.robotsCache.WithLabelValues(result).Inc()
}

// RecordRobotsFetch records a robots.txt fetch result (ok, not_found, error).
func (m *Metrics) RecordRobotsFetch(result string) {
	if m == nil {
		return
	}
	m.robotsFetches.WithLabelValues(result).Inc()
}

// RecordPrivacyDecision records the action taken for one classified field.
func (m *Metrics) RecordPrivacyDecision(category string, allowed, anonymized bool) {
	if m == nil {
		return
	}
	action := "keep"
	switch {
	case !allowed:
		action = "deny"
	case anonymized:
		action = "anonymize"
	}
	m.privacyDecisions.WithLabelValues(category, action).Inc()
}

// RecordRetention records n items purged or anonymized by a retention sweep.
func (m *Metrics) RecordRetention(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionActions.WithLabelValues(action).Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
