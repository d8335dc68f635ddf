package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/robots"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "politecrawl"

	// DefaultUserAgent identifies politecrawl in HTTP requests and robots matching.
	DefaultUserAgent = "politecrawl/1.0 (+https://github.com/nao1215/politecrawl)"

	// DefaultMinDelay is the smallest gap between two requests to one host.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxConcurrentPerHost is the number of requests allowed in flight per host.
	DefaultMaxConcurrentPerHost = 1

	// DefaultRobotsCacheTTL is how long a fetched robots.txt stays fresh.
	DefaultRobotsCacheTTL = robots.DefaultTTL

	// DefaultRobotsFailureTTL is how long a fallback policy is kept after a failed fetch.
	DefaultRobotsFailureTTL = robots.DefaultFailureTTL

	// DefaultRobotsFetchGrace bounds how long a caller waits for a running robots.txt refresh.
	DefaultRobotsFetchGrace = robots.DefaultGracePeriod

	// DefaultBackoffMultiplier multiplies the host delay after 429/503 or an error.
	DefaultBackoffMultiplier = 2.0

	// DefaultMaxBackoff caps the host delay.
	DefaultMaxBackoff = 5 * time.Minute

	// DefaultDecaySteps is the number of successes that bring a backed-off delay back to its base.
	DefaultDecaySteps = 3

	// DefaultRequestTimeout bounds one content request.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxWait bounds the rate limit wait per request.
	DefaultMaxWait = 1 * time.Minute

	// DefaultMaxRedirects is the number of redirects followed per fetch.
	DefaultMaxRedirects = 5

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultAnonymizationStrategy is used for fields that require anonymization.
	DefaultAnonymizationStrategy = string(privacy.StrategyRedact)

	// DefaultWorkers is the number of concurrent fetches in batch mode.
	DefaultWorkers = 4

	// DefaultCrawlDepth is the link depth followed from the start URL.
	DefaultCrawlDepth = 2

	// DefaultMaxPages is the maximum number of pages requested per crawl.
	DefaultMaxPages = 50

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for politecrawl.
// It is built by NewConfig, overlaid by the config file and CLI flags, and
// passed to the engine; there is no global configuration state.
type Config struct {
	// UserAgent is sent with every request and matched against robots.txt groups.
	UserAgent string

	// MinDelay is the default minimum delay between requests to one host.
	// A robots.txt Crawl-delay can raise it per host, never lower it.
	MinDelay time.Duration

	// MaxConcurrentPerHost limits requests in flight per host.
	MaxConcurrentPerHost int

	// RobotsCacheTTL is how long a fetched robots.txt policy is reused.
	RobotsCacheTTL time.Duration

	// RobotsFailureTTL is how long a fallback policy is used after a 5xx,
	// 429 or network failure before retrying.
	RobotsFailureTTL time.Duration

	// RobotsFetchGrace bounds how long a caller waits for an in-flight
	// robots.txt refresh before using the stale or conservative policy.
	RobotsFetchGrace time.Duration

	// RobotsTieBreak decides equal-length Allow/Disallow matches: "disallow" or "allow".
	RobotsTieBreak string

	// DenyUnmatchedAgents denies everything when robots.txt has no group for the agent.
	DenyUnmatchedAgents bool

	// RespectRobots enables robots.txt checking. Disabling it is recorded on every outcome.
	RespectRobots bool

	// BackoffMultiplier multiplies the host delay after a failure. Must be > 1.
	BackoffMultiplier float64

	// MaxBackoff caps the host delay.
	MaxBackoff time.Duration

	// DecaySteps is the number of consecutive successes that restore the base delay.
	DecaySteps int

	// RequestTimeout bounds one content request.
	RequestTimeout time.Duration

	// MaxWait bounds the rate limit wait per request. Zero only takes free slots.
	MaxWait time.Duration

	// MaxRedirects is the number of redirects followed per fetch. Every hop
	// is checked against robots.txt and the rate limiter. Zero follows none.
	MaxRedirects int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// CategoryRetention bounds how long collected items of each category are kept.
	// Categories without an entry are kept indefinitely.
	CategoryRetention map[privacy.Category]privacy.RetentionPolicy

	// AnonymizationStrategy is "redact", "hash" or "drop".
	AnonymizationStrategy string

	// HashSalt is prepended to values before hashing.
	HashSalt string

	// CollectionRules say which categories may be collected and which must be anonymized.
	CollectionRules []privacy.CollectionRule

	// DenyByDefault denies categories without a collection rule.
	DenyByDefault bool

	// ClassificationRules are evaluated before the built-in classification rules.
	ClassificationRules []privacy.PatternRule

	// Workers is the number of concurrent fetches in batch mode.
	Workers int

	// CrawlDepth is the maximum link depth followed by the crawl command.
	// Depth 0 means only fetch the initial page.
	CrawlDepth int

	// MaxPages is the maximum number of pages requested per crawl.
	MaxPages int

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// EmbeddedTor starts an embedded Tor daemon and routes requests through it.
	EmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// DBDir is the directory of the SQLite database. Empty uses the XDG data directory.
	DBDir string

	// MetricsAddr serves Prometheus metrics when set (for example ":9090").
	MetricsAddr string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the file is searched for as described in FindConfigFile.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, including per-host overrides.
	SiteConfigs *File
}

// DefaultCollectionRules allow public data, allow contact and personal data
// only in anonymized form, and deny sensitive and financial data.
func DefaultCollectionRules() []privacy.CollectionRule {
	return []privacy.CollectionRule{
		{Category: privacy.Public, Allowed: true},
		{Category: privacy.Contact, Allowed: true, RequiresAnonymization: true},
		{Category: privacy.Personal, Allowed: true, RequiresAnonymization: true},
		{Category: privacy.Sensitive, Allowed: false},
		{Category: privacy.Financial, Allowed: false},
	}
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		UserAgent:             DefaultUserAgent,
		MinDelay:              DefaultMinDelay,
		MaxConcurrentPerHost:  DefaultMaxConcurrentPerHost,
		RobotsCacheTTL:        DefaultRobotsCacheTTL,
		RobotsFailureTTL:      DefaultRobotsFailureTTL,
		RobotsFetchGrace:      DefaultRobotsFetchGrace,
		RobotsTieBreak:        robots.TieDisallow.String(),
		RespectRobots:         true,
		BackoffMultiplier:     DefaultBackoffMultiplier,
		MaxBackoff:            DefaultMaxBackoff,
		DecaySteps:            DefaultDecaySteps,
		RequestTimeout:        DefaultRequestTimeout,
		MaxWait:               DefaultMaxWait,
		MaxRedirects:          DefaultMaxRedirects,
		MaxBodySize:           DefaultMaxBodySize,
		CategoryRetention:     make(map[privacy.Category]privacy.RetentionPolicy),
		AnonymizationStrategy: DefaultAnonymizationStrategy,
		CollectionRules:       DefaultCollectionRules(),
		Workers:               DefaultWorkers,
		CrawlDepth:            DefaultCrawlDepth,
		MaxPages:              DefaultMaxPages,
		TorStartupTimeout:     DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for politecrawl.
// On Linux: ~/.local/share/politecrawl
// On macOS: ~/Library/Application Support/politecrawl
// On Windows: %LOCALAPPDATA%\politecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for politecrawl.
// On Linux: ~/.config/politecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for politecrawl.
// On Linux: ~/.cache/politecrawl
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found as a wrapped sentinel error.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return ErrEmptyUserAgent
	}
	if c.MinDelay <= 0 {
		return ErrInvalidMinDelay
	}
	if c.MaxConcurrentPerHost < 1 {
		return ErrInvalidConcurrency
	}
	if !(c.BackoffMultiplier > 1) {
		return ErrInvalidBackoffMultiplier
	}
	if c.MaxBackoff < c.MinDelay {
		return ErrInvalidMaxBackoff
	}
	if c.DecaySteps < 1 {
		return ErrInvalidDecaySteps
	}
	if c.RobotsCacheTTL <= 0 || c.RobotsFailureTTL <= 0 {
		return ErrInvalidRobotsTTL
	}
	if c.RobotsFetchGrace <= 0 {
		return ErrInvalidRobotsGrace
	}
	if _, ok := robots.ParseTieBreak(c.RobotsTieBreak); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTieBreak, c.RobotsTieBreak)
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxWait < 0 {
		return ErrInvalidMaxWait
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := privacy.ParseStrategy(c.AnonymizationStrategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	for _, rule := range c.CollectionRules {
		if _, err := privacy.ParseCategory(string(rule.Category)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCollectionRule, err)
		}
	}
	if _, err := privacy.CompilePatternRules(c.ClassificationRules); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClassificationRule, err)
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.EmbeddedTor {
		if c.ProxyAddress != "" {
			return ErrConflictingProxy
		}
		if c.TorStartupTimeout <= 0 {
			return ErrInvalidTimeout
		}
	}
	return nil
}

func (c *Config) validateRetention() error {
	for cat, policy := range c.CategoryRetention {
		if _, err := privacy.ParseCategory(string(cat)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRetention, err)
		}
		if policy.Category != cat {
			return fmt.Errorf("%w: entry for %s names category %q", ErrInvalidRetention, cat, policy.Category)
		}
		if policy.MaxAge <= 0 {
			return fmt.Errorf("%w: %s max age must be positive", ErrInvalidRetention, cat)
		}
		if _, err := privacy.ParseExpiryAction(string(policy.Action)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRetention, cat, err)
		}
	}
	return nil
}

// TieBreak returns the parsed robots tie break. Call Validate first.
func (c *Config) TieBreak() robots.TieBreak {
	tb, _ := robots.ParseTieBreak(c.RobotsTieBreak)
	return tb
}

// Strategy returns the parsed anonymization strategy. Call Validate first.
func (c *Config) Strategy() privacy.Strategy {
	s, err := privacy.ParseStrategy(c.AnonymizationStrategy)
	if err != nil {
		return privacy.StrategyRedact
	}
	return s
}

// RetentionPolicies returns the retention policies sorted by category.
func (c *Config) RetentionPolicies() []privacy.RetentionPolicy {
	keys := slices.Sorted(maps.Keys(c.CategoryRetention))
	policies := make([]privacy.RetentionPolicy, 0, len(keys))
	for _, k := range keys {
		policies = append(policies, c.CategoryRetention[k])
	}
	return policies
}
