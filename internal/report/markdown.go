package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl report in Markdown format.
func (w *MarkdownWriter) Write(result *engine.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(result)

	w.writeHeader(md, summary)
	w.writeFetchSummary(md, summary)
	w.writeItems(md, summary)
	w.writeDenied(md, summary)
	w.writePages(md, result)
	w.writeSitemaps(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("politecrawl Report")
	md.PlainText("")

	robots := "✅ Respected"
	if s.RobotsBypassed {
		robots = "⚠️ Bypassed"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Host", "`" + s.Host + "`"},
			{"Crawl Date", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.String()},
			{"Pages Requested", strconv.Itoa(s.PagesRequested)},
			{"robots.txt", robots},
		},
	})
	md.PlainText("")
}

// writeFetchSummary writes the per-status page counts.
func (w *MarkdownWriter) writeFetchSummary(md *markdown.Markdown, s *Summary) {
	md.H2("Fetch Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		rows = append(rows, []string{status.String(), strconv.Itoa(s.StatusCounts[status.String()])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	if n := s.StatusCounts["policy_denied"]; n > 0 {
		md.Importantf("%d page(s) were skipped because robots.txt disallows them.", n)
		md.PlainText("")
	}
	if n := s.StatusCounts["rate_limit_timeout"]; n > 0 {
		md.Warningf("%d page(s) timed out waiting for the per-host rate limit.", n)
		md.PlainText("")
	}
}

// writeItems writes item counts per category and their distribution.
func (w *MarkdownWriter) writeItems(md *markdown.Markdown, s *Summary) {
	md.H2("Collected Items")
	md.PlainText("")

	if s.TotalItems() == 0 {
		md.PlainText("No items collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(privacy.Categories())+1)
	for _, cat := range privacy.Categories() {
		rows = append(rows, []string{string(cat), strconv.Itoa(s.ItemCounts[cat])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.TotalItems()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Items"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, s)

	if s.AnonymizedItems > 0 {
		md.Note(strconv.Itoa(s.AnonymizedItems) + " item(s) were stored in anonymized form.")
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart for the category distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Collected Items by Category"),
		piechart.WithShowData(true),
	)

	for _, cat := range privacy.Categories() {
		if n := s.ItemCounts[cat]; n > 0 {
			chart.LabelAndIntValue(string(cat), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeDenied writes the fields removed by the collection rules.
func (w *MarkdownWriter) writeDenied(md *markdown.Markdown, s *Summary) {
	md.H2("Denied Fields")
	md.PlainText("")

	if !s.HasDenied() {
		md.Tip("No fields were denied by the collection rules.")
		md.PlainText("")
		return
	}

	sensitive := 0
	rows := make([][]string, len(s.DeniedFields))
	for i, fc := range s.DeniedFields {
		rule := fc.Rule
		if rule == "" {
			rule = "-"
		}
		rows[i] = []string{fc.Field, string(fc.Category), rule, strconv.Itoa(fc.Count)}
		if fc.Category == privacy.Sensitive || fc.Category == privacy.Financial {
			sensitive += fc.Count
		}
	}

	if sensitive > 0 {
		md.Cautionf("%d sensitive or financial value(s) were found and discarded.", sensitive)
		md.PlainText("")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Category", "Rule", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes one row per requested page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *engine.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages requested.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Pages))
	for i, p := range result.Pages {
		code := "-"
		if p.StatusCode > 0 {
			code = strconv.Itoa(p.StatusCode)
		}
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncateString(p.URL, 60),
			strconv.Itoa(p.Depth),
			p.Status.String(),
			code,
			truncateString(title, 40),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Status", "HTTP", "Title"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSitemaps lists the sitemaps declared in robots.txt.
func (w *MarkdownWriter) writeSitemaps(md *markdown.Markdown, s *Summary) {
	if len(s.Sitemaps) == 0 {
		return
	}
	md.H2("Sitemaps")
	md.PlainText("")
	md.BulletList(s.Sitemaps...)
	md.PlainText("")
}

// WriteFetches outputs fetch records as a Markdown table.
func (w *MarkdownWriter) WriteFetches(records []database.FetchRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Fetch Log")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No fetches recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		code := "-"
		if rec.HTTPStatus > 0 {
			code = strconv.Itoa(rec.HTTPStatus)
		}
		rows[i] = []string{
			rec.FetchedAt.Format("2006-01-02 15:04:05"),
			truncateString(rec.URL, 60),
			rec.Status,
			code,
			rec.Waited.String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Time", "URL", "Status", "HTTP", "Waited"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

// WriteRetention outputs the retention pass result in Markdown format.
func (w *MarkdownWriter) WriteRetention(report *RetentionReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Retention Report")
	md.PlainText("")
	md.PlainTextf("Run at %s", report.RunAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	md.H2("Policies")
	md.PlainText("")
	if len(report.Policies) == 0 {
		md.Note("No retention policies are configured; items are kept indefinitely.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(report.Policies))
		for i, p := range report.Policies {
			rows[i] = []string{string(p.Category), p.MaxAge.String(), string(p.Action)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Category", "Max Age", "Action"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.H2("Result")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Items"},
		Rows: [][]string{
			{"Purged", strconv.Itoa(len(report.Purged))},
			{"Anonymized", strconv.Itoa(len(report.Anonymized))},
		},
	})
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [politecrawl](https://github.com/nao1215/politecrawl)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
