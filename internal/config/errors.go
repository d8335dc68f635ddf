package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to report which option is wrong.
var (
	// ErrEmptyUserAgent is returned when no User-Agent is configured.
	// Robots rules are matched against it, so it cannot be empty.
	ErrEmptyUserAgent = errors.New("invalid user agent: must not be empty")

	// ErrInvalidMinDelay is returned when the minimum per-host delay is not positive.
	ErrInvalidMinDelay = errors.New("invalid default min delay: must be positive")

	// ErrInvalidConcurrency is returned when max concurrent requests per host is below 1.
	ErrInvalidConcurrency = errors.New("invalid max concurrent per host: must be at least 1")

	// ErrInvalidBackoffMultiplier is returned when the backoff multiplier is not greater than 1.
	ErrInvalidBackoffMultiplier = errors.New("invalid backoff multiplier: must be greater than 1")

	// ErrInvalidMaxBackoff is returned when the backoff ceiling is below the minimum delay.
	ErrInvalidMaxBackoff = errors.New("invalid max backoff: must not be below the min delay")

	// ErrInvalidDecaySteps is returned when the number of recovery steps is below 1.
	ErrInvalidDecaySteps = errors.New("invalid decay steps: must be at least 1")

	// ErrInvalidRobotsTTL is returned when a robots.txt cache lifetime is not positive.
	ErrInvalidRobotsTTL = errors.New("invalid robots cache ttl: must be positive")

	// ErrInvalidRobotsGrace is returned when the robots.txt refresh grace period is not positive.
	ErrInvalidRobotsGrace = errors.New("invalid robots fetch grace: must be positive")

	// ErrInvalidTieBreak is returned for a robots tie break other than "disallow" or "allow".
	ErrInvalidTieBreak = errors.New("invalid robots tie break: must be disallow or allow")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxWait is returned when the rate limit wait is negative.
	ErrInvalidMaxWait = errors.New("invalid max wait: must be non-negative")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidStrategy is returned for an anonymization strategy other than redact, hash or drop.
	ErrInvalidStrategy = errors.New("invalid anonymization strategy")

	// ErrInvalidRetention is returned for a malformed category retention entry.
	ErrInvalidRetention = errors.New("invalid category retention")

	// ErrInvalidCollectionRule is returned for a collection rule with an unknown category.
	ErrInvalidCollectionRule = errors.New("invalid collection rule")

	// ErrInvalidClassificationRule is returned for a classification rule that does not compile.
	ErrInvalidClassificationRule = errors.New("invalid classification rule")

	// ErrInvalidWorkers is returned when the batch worker count is below 1.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is below 1.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both a SOCKS5 proxy and the embedded Tor daemon are requested.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --embedded-tor cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
