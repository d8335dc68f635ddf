// Package transport adapts net/http clients to the fetch capability consumed
// by the crawling engine.
//
// The engine never builds requests itself. Robots.txt retrieval and content
// fetches both go through a Fetcher, which lets callers inject a plain
// client, a SOCKS5-proxied client, a client routed through an embedded Tor
// daemon, or a fake in tests.
//
// # Clients
//
//   - NewDirectClient: plain client with timeouts that returns redirects to the caller
//   - NewProxyClient: client routed through a SOCKS5 proxy (host:port)
//   - EmbeddedTor.NewClient: client routed through a tornago-managed Tor daemon
//
// # Usage
//
//	client := transport.NewDirectClient(30 * time.Second)
//	fetcher := transport.NewHTTPFetcher(client, transport.WithMaxBodySize(5<<20))
//	resp, err := fetcher.Fetch(ctx, transport.Request{URL: "https://example.com/", UserAgent: "politecrawl"})
package transport
