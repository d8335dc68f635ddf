package engine

import (
	"context"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/privacy"
)

// CrawlResult is the outcome of one same-host crawl.
type CrawlResult struct {
	// StartURL is the URL the crawl started from.
	StartURL string `json:"start_url"`

	// Host is the normalized host that was crawled.
	Host string `json:"host"`

	// Pages holds every requested URL in visit order.
	Pages []*crawler.Page `json:"pages"`

	// Items holds the fields that passed the collection rules.
	Items []privacy.Item `json:"items"`

	// Report holds the privacy decision for every extracted field.
	Report privacy.Report `json:"report"`

	// Sitemaps lists the sitemaps declared in robots.txt. They are reported, not fetched.
	Sitemaps []string `json:"sitemaps,omitempty"`

	// StartedAt and FinishedAt bound the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CountByStatus returns the number of pages per fetch status.
func (r *CrawlResult) CountByStatus() map[crawler.Status]int {
	counts := make(map[crawler.Status]int)
	for _, p := range r.Pages {
		counts[p.Status]++
	}
	return counts
}

// Crawl visits startURL and its same-host links breadth-first. Depth,
// page limit and path patterns come from the configuration and the site
// overrides for the host. Fields extracted from every page pass through
// the privacy checker; only permitted values end up in Items.
func (e *Engine) Crawl(ctx context.Context, startURL string) (*CrawlResult, error) {
	_, host, err := crawler.ResolveURL(startURL)
	if err != nil {
		return nil, err
	}

	site := e.Site(host)
	depth := e.cfg.CrawlDepth
	if site.Depth > 0 {
		depth = site.Depth
	}
	maxPages := e.cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}

	spider := crawler.NewSpider(e.crawler,
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(maxPages),
		crawler.WithMaxWait(e.cfg.MaxWait),
		crawler.WithSpiderUserAgent(e.cfg.UserAgent),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithSpiderLogger(e.logger),
	)

	result := &CrawlResult{
		StartURL:  startURL,
		Host:      host,
		Items:     make([]privacy.Item, 0),
		StartedAt: e.now(),
	}

	pages, err := spider.Crawl(ctx, startURL)
	result.Pages = pages
	for _, page := range pages {
		if len(page.Fields) == 0 {
			continue
		}
		items, report := e.Collect(page.URL, page.Fields)
		result.Items = append(result.Items, items...)
		result.Report.Merge(report)
	}

	if e.cfg.RespectRobots {
		if policy, ok := e.robots.Cached(host); ok {
			result.Sitemaps = policy.Sitemaps
		}
	}
	result.FinishedAt = e.now()

	e.logger.Info("crawl finished",
		"host", host,
		"pages", len(pages),
		"items", len(result.Items),
		"denied_fields", len(result.Report.Denied()),
	)
	return result, err
}
