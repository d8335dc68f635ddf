package robots

import (
	"time"
)

// Directive is the verb of a robots.txt rule.
type Directive int

const (
	// Disallow forbids paths matching the rule pattern.
	Disallow Directive = iota
	// Allow permits paths matching the rule pattern.
	Allow
)

// String returns the robots.txt spelling of the directive.
func (d Directive) String() string {
	if d == Allow {
		return "Allow"
	}
	return "Disallow"
}

// Rule is a single Allow or Disallow line. Rules are immutable once parsed.
type Rule struct {
	// Agent is the user-agent pattern of the group the rule belongs to.
	Agent string

	// Path is the path pattern, possibly containing "*" and a trailing "$".
	Path string

	// Directive is Allow or Disallow.
	Directive Directive
}

// Group is a set of rules shared by one or more user agents.
type Group struct {
	// Agents lists the user-agent values that introduced the group.
	Agents []string

	// Rules holds the Allow and Disallow lines in file order.
	Rules []Rule

	// CrawlDelay is the Crawl-delay of the group. Valid only when HasCrawlDelay is true.
	CrawlDelay time.Duration

	// HasCrawlDelay reports whether the group declared a valid Crawl-delay.
	HasCrawlDelay bool
}

// Source describes where a policy came from.
type Source string

const (
	// SourceParsed marks a policy built directly by Parse.
	SourceParsed Source = "parsed"
	// SourceFetched marks a policy parsed from a successfully fetched robots.txt.
	SourceFetched Source = "fetched"
	// SourceNotFound marks the allow-all policy used when robots.txt is absent (4xx).
	SourceNotFound Source = "not-found"
	// SourceUnreachable marks the deny-all policy used when robots.txt could not be
	// retrieved and nothing was cached.
	SourceUnreachable Source = "unreachable"
)

// TieBreak selects the winner when an Allow and a Disallow pattern of equal
// length both match a path.
type TieBreak int

const (
	// TieDisallow resolves ties in favour of Disallow.
	TieDisallow TieBreak = iota
	// TieAllow resolves ties in favour of Allow, as Google's parser does.
	TieAllow
)

// String returns the configuration spelling of the tie break.
func (t TieBreak) String() string {
	if t == TieAllow {
		return "allow"
	}
	return "disallow"
}

// ParseTieBreak converts "allow" or "disallow" into a TieBreak.
func ParseTieBreak(s string) (TieBreak, bool) {
	switch s {
	case "allow":
		return TieAllow, true
	case "disallow", "":
		return TieDisallow, true
	default:
		return TieDisallow, false
	}
}

// Options controls how a parsed policy is evaluated.
type Options struct {
	// TieBreak resolves equal-length Allow/Disallow matches.
	TieBreak TieBreak

	// DenyUnmatched denies every path for agents matched by no group
	// (neither a named group nor "*").
	DenyUnmatched bool
}

// Option configures Options.
type Option func(*Options)

// WithTieBreak sets the tie break.
func WithTieBreak(t TieBreak) Option {
	return func(o *Options) {
		o.TieBreak = t
	}
}

// WithDenyUnmatched enables deny-all for agents without a matching group.
func WithDenyUnmatched(deny bool) Option {
	return func(o *Options) {
		o.DenyUnmatched = deny
	}
}

// Policy is a compiled robots.txt for one host.
// A Policy is shared read-only between goroutines and replaced, never
// mutated, when the store refreshes it.
type Policy struct {
	// Host is the host the policy applies to.
	Host string

	// Groups holds the user-agent groups in file order.
	Groups []Group

	// Sitemaps lists Sitemap URLs declared anywhere in the file.
	Sitemaps []string

	// FetchedAt is when the robots.txt was retrieved (zero for Parse).
	FetchedAt time.Time

	// TTL is how long the policy may be used before a refresh.
	TTL time.Duration

	// Source describes how the policy was obtained.
	Source Source

	defaultAgent string
	options      Options
}

// AllowAll returns a policy that permits every path. It is used when
// robots.txt does not exist.
func AllowAll(host string) *Policy {
	return &Policy{Host: host, Source: SourceNotFound}
}

// DenyAll returns a policy that forbids every path.
// It is the conservative default when robots.txt cannot be retrieved.
func DenyAll(host string) *Policy {
	return &Policy{
		Host: host,
		Groups: []Group{{
			Agents: []string{"*"},
			Rules:  []Rule{{Agent: "*", Path: "/", Directive: Disallow}},
		}},
		Source: SourceUnreachable,
	}
}

// IsAllowed reports whether agent may fetch path. path is the URL path
// with an optional query ("/a/b?x=1"); an empty path means "/".
func (p *Policy) IsAllowed(path, agent string) bool {
	if path == "" {
		path = "/"
	}

	group, ok := p.selectGroup(agent)
	if !ok {
		return !p.options.DenyUnmatched
	}
	return decide(group.Rules, path, p.options.TieBreak)
}

// CrawlDelay returns the Crawl-delay of the group selected for agent.
func (p *Policy) CrawlDelay(agent string) (time.Duration, bool) {
	group, ok := p.selectGroup(agent)
	if !ok || !group.HasCrawlDelay {
		return 0, false
	}
	return group.CrawlDelay, true
}

// DefaultCrawlDelay returns the Crawl-delay for the default agent given to Parse.
func (p *Policy) DefaultCrawlDelay() (time.Duration, bool) {
	return p.CrawlDelay(p.defaultAgent)
}

// Expired reports whether the policy has outlived its TTL at now.
func (p *Policy) Expired(now time.Time) bool {
	return p.TTL <= 0 || now.Sub(p.FetchedAt) >= p.TTL
}

// clone returns a shallow copy carrying host, fetch time and source.
// Groups and sitemaps are shared since neither is mutated after parsing.
func (p *Policy) clone(host string, fetchedAt time.Time, ttl time.Duration, src Source) *Policy {
	c := *p
	c.Host = host
	c.FetchedAt = fetchedAt
	c.TTL = ttl
	c.Source = src
	return &c
}
