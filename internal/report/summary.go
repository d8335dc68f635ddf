package report

import (
	"sort"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
)

// Summary condenses a CrawlResult into counts suitable for display.
type Summary struct {
	// StartURL is the URL the crawl started from.
	StartURL string `json:"start_url"`

	// Host is the crawled host.
	Host string `json:"host"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time of the crawl.
	Duration time.Duration `json:"duration"`

	// PagesRequested is the number of URLs the crawl tried to fetch.
	PagesRequested int `json:"pages_requested"`

	// StatusCounts maps fetch status names to page counts.
	StatusCounts map[string]int `json:"status_counts"`

	// ItemCounts maps categories to the number of collected items.
	ItemCounts map[privacy.Category]int `json:"item_counts"`

	// AnonymizedItems is the number of items stored in anonymized form.
	AnonymizedItems int `json:"anonymized_items"`

	// DeniedFields lists the fields the collection rules removed.
	DeniedFields []FieldCount `json:"denied_fields,omitempty"`

	// RobotsBypassed is true when any page was fetched without robots checks.
	RobotsBypassed bool `json:"robots_bypassed,omitempty"`

	// Sitemaps lists the sitemaps declared in robots.txt.
	Sitemaps []string `json:"sitemaps,omitempty"`
}

// FieldCount is a field name with the number of pages it appeared on.
type FieldCount struct {
	Field    string           `json:"field"`
	Category privacy.Category `json:"category"`
	Rule     string           `json:"rule,omitempty"`
	Count    int              `json:"count"`
}

// statusOrder fixes the display order of fetch statuses.
var statusOrder = []crawler.Status{
	crawler.Success,
	crawler.PolicyDenied,
	crawler.RateLimitTimeout,
	crawler.NetworkError,
}

// NewSummary builds a Summary from a crawl result.
func NewSummary(res *engine.CrawlResult) *Summary {
	s := &Summary{
		StartURL:       res.StartURL,
		Host:           res.Host,
		StartedAt:      res.StartedAt,
		Duration:       res.FinishedAt.Sub(res.StartedAt),
		PagesRequested: len(res.Pages),
		StatusCounts:   make(map[string]int, len(statusOrder)),
		ItemCounts:     make(map[privacy.Category]int),
		Sitemaps:       res.Sitemaps,
	}

	for status, n := range res.CountByStatus() {
		s.StatusCounts[status.String()] = n
	}
	for _, p := range res.Pages {
		if p.RobotsBypassed {
			s.RobotsBypassed = true
		}
	}
	for _, item := range res.Items {
		s.ItemCounts[item.Category]++
		if item.Anonymized {
			s.AnonymizedItems++
		}
	}

	denied := make(map[string]*FieldCount)
	for _, d := range res.Report.Decisions {
		if d.Allowed {
			continue
		}
		key := d.Field + "\x00" + string(d.Category)
		fc, ok := denied[key]
		if !ok {
			fc = &FieldCount{Field: d.Field, Category: d.Category, Rule: d.Rule}
			denied[key] = fc
		}
		fc.Count++
	}
	for _, fc := range denied {
		s.DeniedFields = append(s.DeniedFields, *fc)
	}
	sort.Slice(s.DeniedFields, func(i, j int) bool {
		if s.DeniedFields[i].Field != s.DeniedFields[j].Field {
			return s.DeniedFields[i].Field < s.DeniedFields[j].Field
		}
		return s.DeniedFields[i].Category < s.DeniedFields[j].Category
	})

	return s
}

// TotalItems returns the number of collected items.
func (s *Summary) TotalItems() int {
	total := 0
	for _, n := range s.ItemCounts {
		total += n
	}
	return total
}

// HasDenied reports whether any field was removed by the collection rules.
func (s *Summary) HasDenied() bool {
	return len(s.DeniedFields) > 0
}

// RetentionReport describes one retention pass over stored items.
type RetentionReport struct {
	// RunAt is the reference time of the pass.
	RunAt time.Time `json:"run_at"`

	// Policies are the retention policies that were applied.
	Policies []privacy.RetentionPolicy `json:"policies"`

	// Purged holds the IDs of removed items.
	Purged []string `json:"purged"`

	// Anonymized holds the IDs of items whose value was replaced.
	Anonymized []string `json:"anonymized"`

	// Remaining maps categories to the number of items still stored.
	Remaining map[privacy.Category]int `json:"remaining"`
}

// NewRetentionReport builds a RetentionReport from a sweep result.
func NewRetentionReport(runAt time.Time, policies map[privacy.Category]privacy.RetentionPolicy, res privacy.SweepResult, remaining map[privacy.Category]int) *RetentionReport {
	r := &RetentionReport{
		RunAt:      runAt,
		Policies:   privacy.SortedPolicies(policies),
		Purged:     res.Purged,
		Anonymized: make([]string, 0, len(res.Anonymized)),
		Remaining:  remaining,
	}
	if r.Purged == nil {
		r.Purged = []string{}
	}
	for _, item := range res.Anonymized {
		r.Anonymized = append(r.Anonymized, item.ID)
	}
	return r
}
