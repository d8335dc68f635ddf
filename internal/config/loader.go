package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/politecrawl/internal/privacy"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".politecrawl"

// Duration is a time.Duration read from YAML either as a Go duration
// string ("1.5s", "720h") or as a number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if seconds, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// RetentionEntry is the file form of a category retention policy.
type RetentionEntry struct {
	MaxAge Duration `yaml:"max_age"`
	Action string   `yaml:"expiry_action"`
}

// File represents the structure of the .politecrawl configuration file.
// Nil fields are left at their current values when applied.
type File struct {
	UserAgent             *string                   `yaml:"user_agent,omitempty"`
	MinDelay              *Duration                 `yaml:"default_min_delay,omitempty"`
	MaxConcurrentPerHost  *int                      `yaml:"max_concurrent_per_host,omitempty"`
	RobotsCacheTTL        *Duration                 `yaml:"robots_cache_ttl,omitempty"`
	RobotsFailureTTL      *Duration                 `yaml:"robots_failure_ttl,omitempty"`
	RobotsFetchGrace      *Duration                 `yaml:"robots_fetch_grace,omitempty"`
	RobotsTieBreak        *string                   `yaml:"robots_tie_break,omitempty"`
	DenyUnmatchedAgents   *bool                     `yaml:"deny_unmatched_agents,omitempty"`
	RespectRobots         *bool                     `yaml:"respect_robots,omitempty"`
	BackoffMultiplier     *float64                  `yaml:"backoff_multiplier,omitempty"`
	MaxBackoff            *Duration                 `yaml:"max_backoff,omitempty"`
	DecaySteps            *int                      `yaml:"decay_steps,omitempty"`
	RequestTimeout        *Duration                 `yaml:"request_timeout,omitempty"`
	MaxWait               *Duration                 `yaml:"max_wait,omitempty"`
	MaxRedirects          *int                      `yaml:"max_redirects,omitempty"`
	MaxBodySize           *int64                    `yaml:"max_body_size,omitempty"`
	CategoryRetention     map[string]RetentionEntry `yaml:"category_retention,omitempty"`
	AnonymizationStrategy *string                   `yaml:"anonymization_strategy,omitempty"`
	HashSalt              *string                   `yaml:"hash_salt,omitempty"`
	CollectionRules       []privacy.CollectionRule  `yaml:"collection_rules,omitempty"`
	DenyByDefault         *bool                     `yaml:"deny_by_default,omitempty"`
	ClassificationRules   []privacy.PatternRule     `yaml:"classification_rules,omitempty"`
	Workers               *int                      `yaml:"workers,omitempty"`
	CrawlDepth            *int                      `yaml:"crawl_depth,omitempty"`
	MaxPages              *int                      `yaml:"max_pages,omitempty"`
	ProxyAddress          *string                   `yaml:"proxy,omitempty"`
	DBDir                 *string                   `yaml:"db_dir,omitempty"`

	// Sites maps host names to their site-specific configurations.
	// Keys are host names without scheme (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// Apply overlays the values set in the file onto cfg and records the file
// as cfg.SiteConfigs. Retention entries with an unknown category or action
// are rejected; other values are checked by Config.Validate.
func (cf *File) Apply(cfg *Config) error {
	setString(&cfg.UserAgent, cf.UserAgent)
	setDuration(&cfg.MinDelay, cf.MinDelay)
	setValue(&cfg.MaxConcurrentPerHost, cf.MaxConcurrentPerHost)
	setDuration(&cfg.RobotsCacheTTL, cf.RobotsCacheTTL)
	setDuration(&cfg.RobotsFailureTTL, cf.RobotsFailureTTL)
	setDuration(&cfg.RobotsFetchGrace, cf.RobotsFetchGrace)
	setString(&cfg.RobotsTieBreak, cf.RobotsTieBreak)
	setValue(&cfg.DenyUnmatchedAgents, cf.DenyUnmatchedAgents)
	setValue(&cfg.RespectRobots, cf.RespectRobots)
	setValue(&cfg.BackoffMultiplier, cf.BackoffMultiplier)
	setDuration(&cfg.MaxBackoff, cf.MaxBackoff)
	setValue(&cfg.DecaySteps, cf.DecaySteps)
	setDuration(&cfg.RequestTimeout, cf.RequestTimeout)
	setDuration(&cfg.MaxWait, cf.MaxWait)
	setValue(&cfg.MaxRedirects, cf.MaxRedirects)
	setValue(&cfg.MaxBodySize, cf.MaxBodySize)
	setString(&cfg.AnonymizationStrategy, cf.AnonymizationStrategy)
	setString(&cfg.HashSalt, cf.HashSalt)
	setValue(&cfg.DenyByDefault, cf.DenyByDefault)
	setValue(&cfg.Workers, cf.Workers)
	setValue(&cfg.CrawlDepth, cf.CrawlDepth)
	setValue(&cfg.MaxPages, cf.MaxPages)
	setString(&cfg.ProxyAddress, cf.ProxyAddress)
	setString(&cfg.DBDir, cf.DBDir)

	if cf.CollectionRules != nil {
		rules := make([]privacy.CollectionRule, len(cf.CollectionRules))
		for i, r := range cf.CollectionRules {
			if cat, err := privacy.ParseCategory(string(r.Category)); err == nil {
				r.Category = cat
			}
			rules[i] = r
		}
		cfg.CollectionRules = rules
	}
	if cf.ClassificationRules != nil {
		cfg.ClassificationRules = cf.ClassificationRules
	}
	if cf.CategoryRetention != nil {
		retention, err := cf.retention()
		if err != nil {
			return err
		}
		cfg.CategoryRetention = retention
	}

	cfg.SiteConfigs = cf
	return nil
}

func (cf *File) retention() (map[privacy.Category]privacy.RetentionPolicy, error) {
	out := make(map[privacy.Category]privacy.RetentionPolicy, len(cf.CategoryRetention))
	for name, entry := range cf.CategoryRetention {
		cat, err := privacy.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRetention, err)
		}
		action, err := privacy.ParseExpiryAction(entry.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRetention, cat, err)
		}
		out[cat] = privacy.RetentionPolicy{
			Category: cat,
			MaxAge:   time.Duration(entry.MaxAge),
			Action:   action,
		}
	}
	return out, nil
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .politecrawl in the current directory
// 3. Look for .politecrawl in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config from defaults and the configuration file found by
// FindConfigFile. A missing file is not an error unless configPath was given.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return cfg, nil
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cf.Apply(cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = path
	return cfg, nil
}
