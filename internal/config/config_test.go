package config

import (
	"errors"
	"testing"
	"time"

	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/robots"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional: these tests fail otherwise.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MinDelay is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.MinDelay != time.Second {
			t.Errorf("expected MinDelay to be 1s, got %v", cfg.MinDelay)
		}
	})

	t.Run("default MaxConcurrentPerHost is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxConcurrentPerHost != 1 {
			t.Errorf("expected MaxConcurrentPerHost to be 1, got %d", cfg.MaxConcurrentPerHost)
		}
	})

	t.Run("robots are respected with disallow tie break", func(t *testing.T) {
		t.Parallel()
		if !cfg.RespectRobots {
			t.Error("expected RespectRobots to be true")
		}
		if cfg.TieBreak() != robots.TieDisallow {
			t.Errorf("expected disallow tie break, got %v", cfg.TieBreak())
		}
		if cfg.RobotsCacheTTL != 24*time.Hour {
			t.Errorf("expected RobotsCacheTTL to be 24h, got %v", cfg.RobotsCacheTTL)
		}
	})

	t.Run("default backoff doubles up to 5 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.BackoffMultiplier != 2 || cfg.MaxBackoff != 5*time.Minute {
			t.Errorf("expected 2x up to 5m, got %vx up to %v", cfg.BackoffMultiplier, cfg.MaxBackoff)
		}
	})

	t.Run("default strategy is redact", func(t *testing.T) {
		t.Parallel()
		if cfg.Strategy() != privacy.StrategyRedact {
			t.Errorf("expected redact, got %q", cfg.Strategy())
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := NewConfig().Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method. Each case breaks exactly one rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "empty user agent", modify: func(c *Config) { c.UserAgent = "" }, want: ErrEmptyUserAgent},
		{name: "zero min delay", modify: func(c *Config) { c.MinDelay = 0 }, want: ErrInvalidMinDelay},
		{name: "zero concurrency", modify: func(c *Config) { c.MaxConcurrentPerHost = 0 }, want: ErrInvalidConcurrency},
		{name: "multiplier of 1", modify: func(c *Config) { c.BackoffMultiplier = 1 }, want: ErrInvalidBackoffMultiplier},
		{name: "max backoff below min delay", modify: func(c *Config) { c.MaxBackoff = 10 * time.Millisecond }, want: ErrInvalidMaxBackoff},
		{name: "zero decay steps", modify: func(c *Config) { c.DecaySteps = 0 }, want: ErrInvalidDecaySteps},
		{name: "zero robots ttl", modify: func(c *Config) { c.RobotsCacheTTL = 0 }, want: ErrInvalidRobotsTTL},
		{name: "zero failure ttl", modify: func(c *Config) { c.RobotsFailureTTL = 0 }, want: ErrInvalidRobotsTTL},
		{name: "zero grace", modify: func(c *Config) { c.RobotsFetchGrace = 0 }, want: ErrInvalidRobotsGrace},
		{name: "unknown tie break", modify: func(c *Config) { c.RobotsTieBreak = "random" }, want: ErrInvalidTieBreak},
		{name: "zero request timeout", modify: func(c *Config) { c.RequestTimeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative max wait", modify: func(c *Config) { c.MaxWait = -time.Second }, want: ErrInvalidMaxWait},
		{name: "negative max redirects", modify: func(c *Config) { c.MaxRedirects = -1 }, want: ErrInvalidMaxRedirects},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "unknown strategy", modify: func(c *Config) { c.AnonymizationStrategy = "shred" }, want: ErrInvalidStrategy},
		{
			name: "retention without max age",
			modify: func(c *Config) {
				c.CategoryRetention[privacy.Personal] = privacy.RetentionPolicy{Category: privacy.Personal, Action: privacy.Purge}
			},
			want: ErrInvalidRetention,
		},
		{
			name: "retention with unknown action",
			modify: func(c *Config) {
				c.CategoryRetention[privacy.Personal] = privacy.RetentionPolicy{Category: privacy.Personal, MaxAge: time.Hour, Action: "archive"}
			},
			want: ErrInvalidRetention,
		},
		{
			name: "retention keyed by the wrong category",
			modify: func(c *Config) {
				c.CategoryRetention[privacy.Contact] = privacy.RetentionPolicy{Category: privacy.Personal, MaxAge: time.Hour, Action: privacy.Purge}
			},
			want: ErrInvalidRetention,
		},
		{
			name:   "collection rule with unknown category",
			modify: func(c *Config) { c.CollectionRules = append(c.CollectionRules, privacy.CollectionRule{Category: "medical"}) },
			want:   ErrInvalidCollectionRule,
		},
		{
			name: "classification rule with bad regexp",
			modify: func(c *Config) {
				c.ClassificationRules = []privacy.PatternRule{{Name: "bad", Field: "(", Category: privacy.Personal}}
			},
			want: ErrInvalidClassificationRule,
		},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, want: ErrInvalidWorkers},
		{name: "negative depth", modify: func(c *Config) { c.CrawlDepth = -1 }, want: ErrInvalidCrawlDepth},
		{name: "zero max pages", modify: func(c *Config) { c.MaxPages = 0 }, want: ErrInvalidMaxPages},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, want: ErrConflictingReportFormats},
		{
			name:   "proxy with embedded tor",
			modify: func(c *Config) { c.EmbeddedTor, c.ProxyAddress = true, "127.0.0.1:9050" },
			want:   ErrConflictingProxy,
		},
		{
			name:   "embedded tor without startup timeout",
			modify: func(c *Config) { c.EmbeddedTor, c.TorStartupTimeout = true, 0 },
			want:   ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("valid retention and custom rules", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.CategoryRetention[privacy.Contact] = privacy.RetentionPolicy{Category: privacy.Contact, MaxAge: 720 * time.Hour, Action: privacy.Anonymize}
		cfg.ClassificationRules = []privacy.PatternRule{{Name: "badge", Field: `^badge_id$`, Category: privacy.Personal}}
		cfg.MaxWait = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestRetentionPolicies(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.CategoryRetention[privacy.Personal] = privacy.RetentionPolicy{Category: privacy.Personal, MaxAge: time.Hour, Action: privacy.Purge}
	cfg.CategoryRetention[privacy.Contact] = privacy.RetentionPolicy{Category: privacy.Contact, MaxAge: 2 * time.Hour, Action: privacy.Anonymize}

	got := cfg.RetentionPolicies()
	if len(got) != 2 || got[0].Category != privacy.Contact || got[1].Category != privacy.Personal {
		t.Errorf("RetentionPolicies() = %+v, want contact then personal", got)
	}
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if dir == "" {
			t.Errorf("expected non-empty XDG %s dir", name)
		}
	}
}
