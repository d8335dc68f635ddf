// Package robots parses robots.txt files and caches the resulting policies
// per host.
//
// # Parsing
//
// Parse never fails. Unknown or malformed lines are skipped, so the worst
// case is an empty policy that allows everything. Groups start at
// User-agent lines; consecutive User-agent lines share one group and groups
// naming the same agent are merged.
//
// # Matching
//
// Policy.IsAllowed selects the group for the requested agent (by full
// string or product token, case folded), falling back to the "*" group.
// Within the group the longest matching pattern wins. Patterns are path
// prefixes that may contain "*" wildcards and end with a "$" anchor.
// When an Allow and a Disallow pattern of the same length both match, the
// configured TieBreak decides (Disallow by default).
//
// # Caching
//
// Store keeps one policy per host with a TTL and collapses concurrent
// refreshes of the same host into a single robots.txt fetch.
//
//	store := robots.NewStore(fetcher, robots.WithTTL(time.Hour))
//	policy, err := store.Policy(ctx, "https", "example.com")
//	if err == nil && policy.IsAllowed("/private/x", "politecrawl") {
//		// fetch
//	}
package robots
