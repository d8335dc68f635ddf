package robots

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// maxCrawlDelay caps absurd Crawl-delay values.
const maxCrawlDelay = 24 * time.Hour

// Parse compiles raw robots.txt content. defaultAgent is the agent used by
// Policy.DefaultCrawlDelay. Parse never fails: malformed lines are skipped.
func Parse(raw, defaultAgent string, opts ...Option) *Policy {
	options := Options{TieBreak: TieDisallow}
	for _, opt := range opts {
		opt(&options)
	}

	p := &Policy{
		Source:       SourceParsed,
		defaultAgent: defaultAgent,
		options:      options,
	}

	var (
		current *Group
		// inAgents is true while consecutive User-agent lines are being read.
		inAgents bool
	)

	raw = strings.TrimPrefix(raw, "\ufeff")
	for _, line := range splitLines(raw) {
		key, value, ok := splitDirective(line)
		if !ok {
			continue
		}

		switch key {
		case "user-agent":
			if value == "" {
				continue
			}
			if current == nil || !inAgents {
				p.Groups = append(p.Groups, Group{})
				current = &p.Groups[len(p.Groups)-1]
			}
			current.Agents = append(current.Agents, value)
			inAgents = true

		case "allow", "disallow":
			if current == nil {
				continue
			}
			inAgents = false
			// An empty value imposes no restriction.
			if value == "" {
				continue
			}
			d := Disallow
			if key == "allow" {
				d = Allow
			}
			current.Rules = append(current.Rules, Rule{
				Agent:     current.Agents[0],
				Path:      value,
				Directive: d,
			})

		case "crawl-delay":
			if current == nil {
				continue
			}
			inAgents = false
			if delay, ok := parseCrawlDelay(value); ok && !current.HasCrawlDelay {
				current.CrawlDelay = delay
				current.HasCrawlDelay = true
			}

		case "sitemap":
			if value != "" {
				p.Sitemaps = append(p.Sitemaps, value)
			}
		}
	}

	return p
}

// splitLines splits on LF, CRLF and bare CR.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// splitDirective returns the lower-cased key and trimmed value of a
// "key: value" line with comments removed.
func splitDirective(line string) (string, string, bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// parseCrawlDelay parses a non-negative number of seconds.
func parseCrawlDelay(value string) (time.Duration, bool) {
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, false
	}
	d := time.Duration(secs * float64(time.Second))
	if secs >= maxCrawlDelay.Seconds() {
		d = maxCrawlDelay
	}
	return d, true
}
