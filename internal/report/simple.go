package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every page instead of only the summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl report in human-readable format.
func (w *SimpleWriter) Write(result *engine.CrawlResult) (int, error) {
	var sb strings.Builder
	summary := NewSummary(result)

	w.writeBanner(&sb, "POLITECRAWL REPORT")

	fmt.Fprintf(&sb, "Start URL:      %s\n", summary.StartURL)
	fmt.Fprintf(&sb, "Host:           %s\n", summary.Host)
	fmt.Fprintf(&sb, "Crawl Date:     %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:       %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages:          %d\n", summary.PagesRequested)
	if summary.RobotsBypassed {
		sb.WriteString("Robots:         BYPASSED (robots.txt was not consulted)\n")
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "FETCH SUMMARY")
	for _, status := range statusOrder {
		fmt.Fprintf(&sb, "  %-20s %d\n", status.String()+":", summary.StatusCounts[status.String()])
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "COLLECTED ITEMS")
	for _, cat := range privacy.Categories() {
		n := summary.ItemCounts[cat]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "  %-20s %d\n", string(cat)+":", n)
	}
	fmt.Fprintf(&sb, "  %-20s %d (%d anonymized)\n", "TOTAL:", summary.TotalItems(), summary.AnonymizedItems)
	sb.WriteString("\n")

	if summary.HasDenied() || w.showEmpty {
		w.writeSection(&sb, "DENIED FIELDS")
		if !summary.HasDenied() {
			sb.WriteString("  No fields denied\n")
		}
		for _, fc := range summary.DeniedFields {
			fmt.Fprintf(&sb, "  [-] %s (%s) on %d page(s)\n", fc.Field, fc.Category, fc.Count)
		}
		sb.WriteString("\n")
	}

	if len(summary.Sitemaps) > 0 || w.showEmpty {
		w.writeSection(&sb, "SITEMAPS")
		if len(summary.Sitemaps) == 0 {
			sb.WriteString("  No sitemaps declared\n")
		}
		for _, sm := range summary.Sitemaps {
			fmt.Fprintf(&sb, "  [+] %s\n", sm)
		}
		sb.WriteString("\n")
	}

	if w.verbose {
		w.writeSection(&sb, "PAGES")
		for _, p := range result.Pages {
			w.writePage(&sb, p)
		}
		sb.WriteString("\n")
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writePage writes one page line with its status indicator.
func (w *SimpleWriter) writePage(sb *strings.Builder, p *crawler.Page) {
	fmt.Fprintf(sb, "  [%s] %s", statusIndicator(p.Status), p.URL)
	if p.StatusCode > 0 {
		fmt.Fprintf(sb, " (%d)", p.StatusCode)
	}
	if p.Error != "" {
		fmt.Fprintf(sb, " - %s", p.Error)
	}
	sb.WriteString("\n")
}

// WriteFetches outputs one line per fetch record.
func (w *SimpleWriter) WriteFetches(records []database.FetchRecord) (int, error) {
	var sb strings.Builder

	if len(records) == 0 {
		sb.WriteString("No fetches recorded\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, rec := range records {
		fmt.Fprintf(&sb, "%-20s %s", rec.Status, rec.URL)
		if rec.HTTPStatus > 0 {
			fmt.Fprintf(&sb, " (%d)", rec.HTTPStatus)
		}
		if rec.Waited > 0 {
			fmt.Fprintf(&sb, " waited %s", rec.Waited)
		}
		if rec.RobotsBypassed {
			sb.WriteString(" [robots bypassed]")
		}
		sb.WriteString("\n")
		if w.verbose && rec.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", rec.Error)
		}
	}
	return w.output.Write([]byte(sb.String()))
}

// WriteRetention outputs the retention pass result.
func (w *SimpleWriter) WriteRetention(report *RetentionReport) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "RETENTION REPORT")
	fmt.Fprintf(&sb, "Run At:         %s\n\n", report.RunAt.Format("2006-01-02 15:04:05 MST"))

	w.writeSection(&sb, "POLICIES")
	if len(report.Policies) == 0 {
		sb.WriteString("  No retention policies configured\n")
	}
	for _, p := range report.Policies {
		fmt.Fprintf(&sb, "  %-12s max age %-10s then %s\n", p.Category, p.MaxAge, p.Action)
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "RESULT")
	fmt.Fprintf(&sb, "  Purged:       %d\n", len(report.Purged))
	fmt.Fprintf(&sb, "  Anonymized:   %d\n", len(report.Anonymized))
	for _, cat := range privacy.Categories() {
		if n := report.Remaining[cat]; n > 0 || w.showEmpty {
			fmt.Fprintf(&sb, "  Remaining %-10s %d\n", string(cat)+":", n)
		}
	}
	sb.WriteString("\n")

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeBanner writes a report title framed by double rules.
func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (70-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

// writeSection writes a section heading framed by single rules.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by politecrawl\n")
	sb.WriteString("https://github.com/nao1215/politecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// statusIndicator returns a short marker for a fetch status.
func statusIndicator(status crawler.Status) string {
	switch status {
	case crawler.Success:
		return "ok"
	case crawler.PolicyDenied:
		return "robots"
	case crawler.RateLimitTimeout:
		return "wait"
	case crawler.NetworkError:
		return "err"
	default:
		return "?"
	}
}
