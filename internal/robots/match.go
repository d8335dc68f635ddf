package robots

import (
	"strings"

	"golang.org/x/text/cases"
)

// selectGroup returns the merged group for agent: groups naming the agent
// take priority over "*" groups.
func (p *Policy) selectGroup(agent string) (Group, bool) {
	// Casers keep state and must not be shared between goroutines.
	fold := cases.Fold()
	full := fold.String(strings.TrimSpace(agent))
	token := fold.String(productToken(agent))

	var specific, wildcard []Group
	for _, g := range p.Groups {
		named, star := false, false
		for _, a := range g.Agents {
			if a == "*" {
				star = true
				continue
			}
			if fold.String(a) == full || (token != "" && fold.String(productToken(a)) == token) {
				named = true
			}
		}
		switch {
		case named:
			specific = append(specific, g)
		case star:
			wildcard = append(wildcard, g)
		}
	}

	switch {
	case len(specific) > 0:
		return merge(specific), true
	case len(wildcard) > 0:
		return merge(wildcard), true
	default:
		return Group{}, false
	}
}

// productToken returns the leading product name of a user-agent string,
// "politecrawl" for "PoliteCrawl/1.0 (+https://example.com/bot)".
func productToken(agent string) string {
	agent = strings.TrimSpace(agent)
	if i := strings.IndexAny(agent, "/ ("); i >= 0 {
		agent = agent[:i]
	}
	return agent
}

// merge combines groups naming the same agent. The first declared
// Crawl-delay wins.
func merge(groups []Group) Group {
	if len(groups) == 1 {
		return groups[0]
	}
	var out Group
	for _, g := range groups {
		out.Agents = append(out.Agents, g.Agents...)
		out.Rules = append(out.Rules, g.Rules...)
		if g.HasCrawlDelay && !out.HasCrawlDelay {
			out.CrawlDelay = g.CrawlDelay
			out.HasCrawlDelay = true
		}
	}
	return out
}

// decide applies longest-match precedence to path.
func decide(rules []Rule, path string, tie TieBreak) bool {
	bestLen := -1
	allowed := true
	for _, r := range rules {
		if !matchPattern(r.Path, path) {
			continue
		}
		n := len(r.Path)
		switch {
		case n > bestLen:
			bestLen = n
			allowed = r.Directive == Allow
		case n == bestLen && (r.Directive == Allow) != allowed:
			allowed = tie == TieAllow
		}
	}
	return allowed
}

// matchPattern reports whether path matches a robots.txt pattern. The
// pattern matches as a prefix; "*" matches any run of characters and a
// trailing "$" anchors the end of the path.
func matchPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])
	if len(parts) == 1 {
		return !anchored || pos == len(path)
	}

	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(path[pos:], part)
		if i < 0 {
			return false
		}
		pos += i + len(part)
	}

	last := parts[len(parts)-1]
	if anchored {
		return len(path)-len(last) >= pos && strings.HasSuffix(path, last)
	}
	return strings.Contains(path[pos:], last)
}
