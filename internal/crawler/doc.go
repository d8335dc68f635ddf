// Package crawler performs robots-aware, rate-limited fetches and
// same-host crawls.
//
// # Components
//
//   - RespectfulCrawler: checks robots.txt, waits for a per-host rate limit
//     slot, fetches through the injected transport and feeds the outcome
//     back to the limiter
//   - Spider: breadth-first crawl of one host where every page goes through
//     a RespectfulCrawler
//   - Parser: HTML parser extracting links and collectable fields
//
// # Fetch lifecycle
//
// Each RespectfulCrawler.Fetch moves through Pending, PolicyCheck,
// RateLimitWait and Fetching and ends in Denied, TimedOut, Succeeded or
// Failed. A URL disallowed by robots.txt is never fetched while robots
// checking is enabled.
//
// # Usage
//
//	rc := crawler.NewRespectfulCrawler(store, limiter, fetcher)
//	out := rc.Fetch(ctx, "https://example.com/page", "politecrawl/1.0", 30*time.Second)
//	if out.Status != crawler.Success {
//		return out.Err
//	}
package crawler
