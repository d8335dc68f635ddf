package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/metrics"
	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/ratelimit"
	"github.com/nao1215/politecrawl/internal/robots"
	"github.com/nao1215/politecrawl/internal/transport"
)

// Engine decides and enforces, for every fetch and every collected field,
// whether the action is permitted.
type Engine struct {
	cfg       *config.Config
	robots    *robots.Store
	limiter   *ratelimit.Limiter
	crawler   *crawler.RespectfulCrawler
	checker   *privacy.Checker
	retention atomic.Pointer[map[privacy.Category]privacy.RetentionPolicy]
	sites     atomic.Pointer[config.File]
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder passed to every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the time source used for collection timestamps and retention.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New validates cfg and builds an Engine that fetches through fetcher.
// An invalid configuration is the only error.
func New(cfg *config.Config, fetcher transport.Fetcher, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	ruleset, err := buildRuleset(cfg)
	if err != nil {
		return nil, err
	}
	anonymizer, err := privacy.NewAnonymizer(cfg.Strategy(), cfg.HashSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e.robots = robots.NewStore(fetcher,
		robots.WithTTL(cfg.RobotsCacheTTL),
		robots.WithFailureTTL(cfg.RobotsFailureTTL),
		robots.WithGracePeriod(cfg.RobotsFetchGrace),
		robots.WithFetchTimeout(cfg.RequestTimeout),
		robots.WithUserAgent(cfg.UserAgent),
		robots.WithParseOptions(
			robots.WithTieBreak(cfg.TieBreak()),
			robots.WithDenyUnmatched(cfg.DenyUnmatchedAgents),
		),
		robots.WithLogger(e.logger),
		robots.WithMetrics(e.metrics),
		robots.WithClock(e.now),
	)
	e.limiter = ratelimit.New(
		ratelimit.WithMinDelay(cfg.MinDelay),
		ratelimit.WithMaxConcurrent(cfg.MaxConcurrentPerHost),
		ratelimit.WithBackoffMultiplier(cfg.BackoffMultiplier),
		ratelimit.WithMaxBackoff(cfg.MaxBackoff),
		ratelimit.WithDecaySteps(cfg.DecaySteps),
		ratelimit.WithLogger(e.logger),
		ratelimit.WithMetrics(e.metrics),
	)
	e.crawler = crawler.NewRespectfulCrawler(e.robots, e.limiter, fetcher,
		crawler.WithRespectRobots(cfg.RespectRobots),
		crawler.WithRequestTimeout(cfg.RequestTimeout),
		crawler.WithMaxRedirects(cfg.MaxRedirects),
		crawler.WithHostHeaders(e.hostHeaders),
		crawler.WithLogger(e.logger),
		crawler.WithMetrics(e.metrics),
	)
	e.checker = privacy.NewChecker(ruleset,
		privacy.WithAnonymizer(anonymizer),
		privacy.WithLogger(e.logger),
		privacy.WithMetrics(e.metrics),
	)

	retention := cfg.CategoryRetention
	e.retention.Store(&retention)
	e.sites.Store(cfg.SiteConfigs)

	if !cfg.RespectRobots {
		e.logger.Warn("robots.txt checking is disabled; every fetch is recorded as bypassed")
	}
	return e, nil
}

func buildRuleset(cfg *config.Config) (*privacy.Ruleset, error) {
	custom, err := privacy.CompilePatternRules(cfg.ClassificationRules)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return privacy.NewRuleset(privacy.NewDefaultClassifier(custom...), cfg.CollectionRules, cfg.DenyByDefault), nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Fetch retrieves rawURL through the robots policy and the rate limiter.
// An empty userAgent uses the configured one.
func (e *Engine) Fetch(ctx context.Context, rawURL, userAgent string, maxWait time.Duration) crawler.FetchOutcome {
	if userAgent == "" {
		userAgent = e.cfg.UserAgent
	}
	return e.crawler.Fetch(ctx, rawURL, userAgent, maxWait)
}

// Robots returns the robots.txt policy governing rawURL.
func (e *Engine) Robots(ctx context.Context, rawURL string) (*robots.Policy, error) {
	u, host, err := crawler.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	return e.robots.Policy(ctx, u.Scheme, host)
}

// HostStates returns the rate limiter state of every host seen so far.
func (e *Engine) HostStates() []ratelimit.HostState {
	return e.limiter.Snapshot()
}

// Classify returns the category of a field.
func (e *Engine) Classify(field, value string) privacy.Category {
	return e.checker.Classify(field, value)
}

// EvaluateRecord drops denied fields, anonymizes those that require it and
// reports every decision.
func (e *Engine) EvaluateRecord(fields map[string]string) (map[string]string, privacy.Report) {
	return e.checker.EvaluateRecord(fields)
}

// Collect evaluates fields found at sourceURL and returns the permitted
// ones as items stamped with the current time.
func (e *Engine) Collect(sourceURL string, fields map[string]string) ([]privacy.Item, privacy.Report) {
	return e.checker.Collect(sourceURL, fields, e.now())
}

// Retention applies the configured category retention to items at the current time.
func (e *Engine) Retention(items []privacy.Item) privacy.SweepResult {
	return e.checker.Retention(items, *e.retention.Load(), e.now())
}

// RetentionPolicies returns the active retention policies.
func (e *Engine) RetentionPolicies() map[privacy.Category]privacy.RetentionPolicy {
	return *e.retention.Load()
}

// Anonymizer returns the anonymizer used for collection and retention.
func (e *Engine) Anonymizer() *privacy.Anonymizer {
	return e.checker.Anonymizer()
}

// Reload applies a changed configuration file to the privacy rules, the
// retention policies and the site overrides. Crawl settings and the
// anonymization strategy keep their startup values. An invalid file leaves
// everything unchanged.
func (e *Engine) Reload(cf *config.File) error {
	next := *e.cfg
	if err := cf.Apply(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ruleset, err := buildRuleset(&next)
	if err != nil {
		return err
	}

	e.checker.SetRuleset(ruleset)
	retention := next.CategoryRetention
	e.retention.Store(&retention)
	e.sites.Store(cf)

	e.logger.Info("privacy rules reloaded",
		"collection_rules", len(next.CollectionRules),
		"classification_rules", len(next.ClassificationRules),
		"retention_policies", len(retention),
	)
	return nil
}

// Site returns the merged site configuration for host.
func (e *Engine) Site(host string) config.SiteConfig {
	return e.sites.Load().GetSiteConfig(host)
}

func (e *Engine) hostHeaders(host string) http.Header {
	site := e.Site(host)
	if len(site.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(site.Headers))
	for k, v := range site.Headers {
		h.Set(k, v)
	}
	return h
}
