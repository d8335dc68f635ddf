package robots

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestParseCrawlDelayAndPrivateSection(t *testing.T) {
	t.Parallel()

	p := Parse("User-agent: *\nDisallow: /private\nCrawl-delay: 3", "politecrawl")

	if p.IsAllowed("/private/x", "politecrawl") {
		t.Error("/private/x should be disallowed")
	}
	if !p.IsAllowed("/public", "politecrawl") {
		t.Error("/public should be allowed")
	}
	delay, ok := p.DefaultCrawlDelay()
	if !ok || delay != 3*time.Second {
		t.Errorf("DefaultCrawlDelay() = %v, %v; want 3s, true", delay, ok)
	}
}

func TestDisallowRootBlocksEveryPath(t *testing.T) {
	t.Parallel()

	p := Parse("User-agent: *\nDisallow: /\n", "politecrawl")

	rapid.Check(t, func(t *rapid.T) {
		path := "/" + rapid.StringMatching(`[a-zA-Z0-9/._~%?=&-]{0,40}`).Draw(t, "path")
		agent := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9/.]{0,20}`).Draw(t, "agent")
		if p.IsAllowed(path, agent) {
			t.Fatalf("IsAllowed(%q, %q) = true under Disallow: /", path, agent)
		}
	})
}

func TestIsAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   string
		opts  []Option
		path  string
		agent string
		want  bool
	}{
		{
			name:  "empty file allows everything",
			raw:   "",
			path:  "/anything",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "longest match wins over shorter disallow",
			raw:   "User-agent: *\nDisallow: /shop\nAllow: /shop/public\n",
			path:  "/shop/public/item",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "longest match wins over shorter allow",
			raw:   "User-agent: *\nAllow: /shop\nDisallow: /shop/cart\n",
			path:  "/shop/cart/1",
			agent: "politecrawl",
			want:  false,
		},
		{
			// Equal-length conflict: Disallow is the configured default, not a
			// behaviour guaranteed by robots.txt itself.
			name:  "equal length tie defaults to disallow",
			raw:   "User-agent: *\nAllow: /page\nDisallow: /page\n",
			path:  "/page",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "equal length tie with allow tie break",
			raw:   "User-agent: *\nDisallow: /page\nAllow: /page\n",
			opts:  []Option{WithTieBreak(TieAllow)},
			path:  "/page",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "named group takes priority over wildcard",
			raw:   "User-agent: *\nDisallow: /\n\nUser-agent: politecrawl\nAllow: /\n",
			path:  "/x",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "agent match is case insensitive",
			raw:   "User-agent: *\nAllow: /\n\nUser-agent: PoliteCrawl\nDisallow: /\n",
			path:  "/x",
			agent: "POLITECRAWL",
			want:  false,
		},
		{
			name:  "product token of full user agent selects group",
			raw:   "User-agent: politecrawl\nDisallow: /secret\n",
			path:  "/secret",
			agent: "PoliteCrawl/1.0 (+https://example.com/bot)",
			want:  false,
		},
		{
			name:  "other agent group is ignored",
			raw:   "User-agent: otherbot\nDisallow: /\n",
			path:  "/x",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "unmatched agent denied when configured",
			raw:   "User-agent: otherbot\nDisallow: /\n",
			opts:  []Option{WithDenyUnmatched(true)},
			path:  "/x",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "consecutive user agents share a group",
			raw:   "User-agent: a\nUser-agent: politecrawl\nDisallow: /shared\n",
			path:  "/shared",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "groups for the same agent are merged",
			raw:   "User-agent: politecrawl\nDisallow: /a\n\nUser-agent: politecrawl\nDisallow: /b\n",
			path:  "/b/1",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "empty disallow imposes no restriction",
			raw:   "User-agent: *\nDisallow:\n",
			path:  "/x",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "wildcard in pattern",
			raw:   "User-agent: *\nDisallow: /*/edit\n",
			path:  "/wiki/page/edit",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "end anchor matches exact suffix",
			raw:   "User-agent: *\nDisallow: /*.pdf$\n",
			path:  "/docs/file.pdf",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "end anchor does not match longer path",
			raw:   "User-agent: *\nDisallow: /*.pdf$\n",
			path:  "/docs/file.pdf?download=1",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "query string is part of the path",
			raw:   "User-agent: *\nDisallow: /search?q=\n",
			path:  "/search?q=go",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "malformed lines are skipped",
			raw:   "this is not robots\nDisallow /nocolon\nUser-agent: *\n: empty key\nDisallow: /private # comment\n",
			path:  "/private",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "rules before any user agent are ignored",
			raw:   "Disallow: /\nUser-agent: *\nAllow: /\n",
			path:  "/x",
			agent: "politecrawl",
			want:  true,
		},
		{
			name:  "crlf line endings",
			raw:   "User-agent: *\r\nDisallow: /private\r\n",
			path:  "/private",
			agent: "politecrawl",
			want:  false,
		},
		{
			name:  "empty path is root",
			raw:   "User-agent: *\nDisallow: /\n",
			path:  "",
			agent: "politecrawl",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Parse(tt.raw, "politecrawl", tt.opts...)
			if got := p.IsAllowed(tt.path, tt.agent); got != tt.want {
				t.Errorf("IsAllowed(%q, %q) = %v, want %v", tt.path, tt.agent, got, tt.want)
			}
		})
	}
}

func TestCrawlDelay(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"User-agent: *",
		"Crawl-delay: 1.5",
		"",
		"User-agent: slowbot",
		"Crawl-delay: 10",
		"",
		"User-agent: badbot",
		"Crawl-delay: -4",
		"",
		"User-agent: nandbot",
		"Crawl-delay: soon",
	}, "\n")
	p := Parse(raw, "politecrawl")

	tests := []struct {
		agent  string
		want   time.Duration
		wantOK bool
	}{
		{agent: "politecrawl", want: 1500 * time.Millisecond, wantOK: true},
		{agent: "slowbot", want: 10 * time.Second, wantOK: true},
		{agent: "badbot", wantOK: false},
		{agent: "nandbot", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := p.CrawlDelay(tt.agent)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("CrawlDelay(%q) = %v, %v; want %v, %v", tt.agent, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSitemaps(t *testing.T) {
	t.Parallel()

	p := Parse("Sitemap: https://example.com/a.xml\nUser-agent: *\nDisallow: /x\nSitemap: https://example.com/b.xml\n", "politecrawl")
	if len(p.Sitemaps) != 2 || p.Sitemaps[1] != "https://example.com/b.xml" {
		t.Errorf("Sitemaps = %v", p.Sitemaps)
	}
	// A Sitemap line does not end the group.
	if p.IsAllowed("/x", "politecrawl") {
		t.Error("/x should be disallowed")
	}
}

func TestAllowAllDenyAll(t *testing.T) {
	t.Parallel()

	allow := AllowAll("example.com")
	deny := DenyAll("example.com")
	for _, path := range []string{"/", "/a", "/robots.txt"} {
		if !allow.IsAllowed(path, "politecrawl") {
			t.Errorf("AllowAll denied %q", path)
		}
		if deny.IsAllowed(path, "politecrawl") {
			t.Errorf("DenyAll allowed %q", path)
		}
	}
	if _, ok := allow.DefaultCrawlDelay(); ok {
		t.Error("AllowAll should carry no crawl delay")
	}
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOfN(rapid.SampledFrom([]string{
			"User-agent: *",
			"User-agent: politecrawl",
			"Allow: /a",
			"Disallow: /a",
			"Disallow: /a/b",
			"Allow: /*.html$",
			"Disallow: /",
			"Crawl-delay: 2",
			"garbage",
			"",
		}), 0, 12).Draw(t, "lines")
		raw := strings.Join(lines, "\n")
		path := rapid.SampledFrom([]string{"/", "/a", "/a/b/c", "/x.html", "/a/x.html"}).Draw(t, "path")

		first := Parse(raw, "politecrawl").IsAllowed(path, "politecrawl")
		second := Parse(raw, "politecrawl").IsAllowed(path, "politecrawl")
		if first != second {
			t.Fatalf("IsAllowed(%q) differs between parses of %q", path, raw)
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/", "/anything", true},
		{"/a", "/abc", true},
		{"/a", "/b", false},
		{"/*", "/", true},
		{"*", "/x", true},
		{"/a*c", "/abbbc/d", true},
		{"/a*c", "/abbbd", false},
		{"/$", "/", true},
		{"/$", "/a", false},
		{"/*.php$", "/index.php", true},
		{"/*.php$", "/index.php5", false},
		{"/a*b*c$", "/a-b-c", true},
		{"/a*b*c$", "/acb", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestParseTieBreak(t *testing.T) {
	t.Parallel()

	if tb, ok := ParseTieBreak("allow"); !ok || tb != TieAllow {
		t.Errorf("ParseTieBreak(allow) = %v, %v", tb, ok)
	}
	if tb, ok := ParseTieBreak(""); !ok || tb != TieDisallow {
		t.Errorf("ParseTieBreak(\"\") = %v, %v", tb, ok)
	}
	if _, ok := ParseTieBreak("maybe"); ok {
		t.Error("ParseTieBreak(maybe) should fail")
	}
}
