package report

import (
	"io"

	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
)

// Writer defines the interface for report output.
// Implementations write crawl, fetch and retention results in various formats.
type Writer interface {
	// Write outputs the report for a crawl.
	// Returns the number of bytes written and any error encountered.
	Write(result *engine.CrawlResult) (int, error)

	// WriteFetches outputs a list of fetch records.
	WriteFetches(records []database.FetchRecord) (int, error)

	// WriteRetention outputs the result of a retention pass.
	WriteRetention(report *RetentionReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the crawl report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *engine.CrawlResult) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(result) })
}

// WriteFetches outputs the fetch records to all configured Writers.
func (m *MultiWriter) WriteFetches(records []database.FetchRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteFetches(records) })
}

// WriteRetention outputs the retention report to all configured Writers.
func (m *MultiWriter) WriteRetention(report *RetentionReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteRetention(report) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
