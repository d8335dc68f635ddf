package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

// PageFetcher fetches one URL under robots and rate limit rules.
// RespectfulCrawler implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL, userAgent string, maxWait time.Duration) FetchOutcome
}

// Page is one URL visited by a Spider.
type Page struct {
	URL            string            `json:"url"`
	Depth          int               `json:"depth"`
	Status         Status            `json:"status"`
	StatusCode     int               `json:"status_code,omitempty"`
	ContentType    string            `json:"content_type,omitempty"`
	Title          string            `json:"title,omitempty"`
	Links          []string          `json:"links,omitempty"`
	Fields         map[string]string `json:"-"`
	Error          string            `json:"error,omitempty"`
	RobotsBypassed bool              `json:"robots_bypassed,omitempty"`
	Waited         time.Duration     `json:"waited"`
	FetchedAt      time.Time         `json:"fetched_at"`
}

// Spider crawls one host breadth-first. Every request goes through a
// PageFetcher, so robots rules and per-host delays apply to each page.
type Spider struct {
	// fetcher performs the robots-aware, rate-limited fetches.
	fetcher PageFetcher

	// userAgent is sent with every request and used for robots matching.
	userAgent string

	// maxWait bounds the rate limit wait per page.
	maxWait time.Duration

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the number of URLs requested.
	maxPages int

	// ignorePatterns are URL path globs to skip ("/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns, when set, restrict the crawl to matching paths.
	followPatterns []string

	logger *slog.Logger

	// visited tracks normalized URLs already requested.
	visited map[string]bool

	// mutex protects visited and pageCount.
	mutex sync.Mutex

	// pageCount tracks URLs requested.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of URLs requested.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxWait sets the rate limit wait budget per page.
func WithMaxWait(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.maxWait = d
	}
}

// WithSpiderUserAgent sets the User-Agent.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithIgnorePatterns sets URL path globs to skip.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path globs to follow. Empty means all paths.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider fetching through fetcher.
func NewSpider(fetcher PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		userAgent: "politecrawl",
		maxWait:   time.Minute,
		maxDepth:  2,
		maxPages:  50,
		logger:    slog.Default(),
		visited:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// Crawl visits startURL and same-host links breadth-first. Every requested
// URL yields a Page, including denied and failed ones. The error is non-nil
// only for an invalid start URL or a cancelled ctx.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*Page, error) {
	start, host, err := ResolveURL(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Path == "" {
		start.Path = "/"
	}

	pages := make([]*Page, 0)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && s.count() < s.maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		item := queue[0]
		queue = queue[1:]

		if !s.markVisited(item.url) {
			continue
		}

		page := s.fetchPage(ctx, item)
		pages = append(pages, page)

		if item.depth >= s.maxDepth {
			continue
		}
		for _, link := range page.Links {
			if !s.isVisited(link) && isSameHost(host, link) && s.shouldCrawl(link) {
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}
	}

	return pages, nil
}

// fetchPage fetches one URL and parses HTML responses.
func (s *Spider) fetchPage(ctx context.Context, item queueItem) *Page {
	out := s.fetcher.Fetch(ctx, item.url, s.userAgent, s.maxWait)

	page := &Page{
		URL:            item.url,
		Depth:          item.depth,
		Status:         out.Status,
		StatusCode:     out.StatusCode(),
		RobotsBypassed: out.RobotsBypassed,
		Waited:         out.Waited,
		FetchedAt:      out.StartedAt,
	}
	if out.Err != nil {
		page.Error = out.Err.Error()
	}
	if out.Status != Success || out.Response == nil {
		s.logger.Debug("page skipped", "url", item.url, "status", out.Status.String())
		return page
	}

	page.ContentType = out.Response.ContentType()
	if !strings.Contains(page.ContentType, "html") {
		return page
	}

	base := item.url
	if out.Response.URL != "" {
		base = out.Response.URL
	}
	parser, err := NewParser(base)
	if err != nil {
		return page
	}
	result, err := parser.Parse(bytes.NewReader(out.Response.Body))
	if err != nil {
		s.logger.Debug("failed to parse page", "url", item.url, "error", err)
		return page
	}
	page.Title = result.Title
	page.Links = result.InternalLinks
	page.Fields = result.Fields()
	return page
}

func (s *Spider) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

// markVisited records pageURL and reports whether it was new.
func (s *Spider) markVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := normalizeURL(pageURL)
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	s.pageCount++
	return true
}

func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[normalizeURL(pageURL)]
}

// Reset clears the visited set so the spider can be reused.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited = make(map[string]bool)
	s.pageCount = 0
}

// normalizeURL drops the fragment, lower-cases scheme and host and maps
// an empty path to "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// isSameHost reports whether targetURL is on host (normalized form).
func isSameHost(host, targetURL string) bool {
	_, h, err := ResolveURL(targetURL)
	return err == nil && h == host
}

// shouldCrawl applies ignore patterns first, then follow patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchGlob(pattern, p) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchGlob(pattern, p) {
			return true
		}
	}
	return false
}

// matchGlob matches a URL path against a glob. "/dir/*" matches everything
// below /dir, "*.ext" matches the extension anywhere, other patterns use
// path.Match against the full path and, for patterns without "/", the last
// segment.
func matchGlob(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && strings.HasSuffix(p, "."+ext) {
		return true
	}
	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(p))
		return err == nil && matched
	}
	return false
}
