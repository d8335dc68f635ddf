package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the politecrawl version recorded in crawl reports.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tool version in crawl reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written for a crawl. Item values are left
// out; the summary and per-field decisions are enough to audit a crawl.
type JSONReport struct {
	// Version is the politecrawl version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary is the condensed view of the crawl.
	Summary *Summary `json:"summary"`

	// Pages holds every requested URL in visit order.
	Pages []*crawler.Page `json:"pages"`

	// Decisions holds the privacy decision for every extracted field.
	Decisions []privacy.FieldDecision `json:"decisions"`
}

// Write outputs the crawl report in JSON format.
func (w *JSONWriter) Write(result *engine.CrawlResult) (int, error) {
	decisions := result.Report.Decisions
	if decisions == nil {
		decisions = []privacy.FieldDecision{}
	}
	pages := result.Pages
	if pages == nil {
		pages = []*crawler.Page{}
	}
	return w.writeJSON(&JSONReport{
		Version:   w.version,
		Summary:   NewSummary(result),
		Pages:     pages,
		Decisions: decisions,
	})
}

// WriteFetches outputs fetch records as a JSON array.
func (w *JSONWriter) WriteFetches(records []database.FetchRecord) (int, error) {
	if records == nil {
		records = []database.FetchRecord{}
	}
	return w.writeJSON(records)
}

// WriteRetention outputs the retention report in JSON format.
func (w *JSONWriter) WriteRetention(report *RetentionReport) (int, error) {
	return w.writeJSON(report)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
