package report

import (
	"sync"

	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
)

// SyncWriter serializes calls to a Writer so that reports written from
// concurrent crawls never interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  Writer
}

// NewSyncWriter wraps w.
func NewSyncWriter(w Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write outputs the crawl report while holding the lock.
func (s *SyncWriter) Write(result *engine.CrawlResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(result)
}

// WriteFetches outputs fetch records while holding the lock.
func (s *SyncWriter) WriteFetches(records []database.FetchRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteFetches(records)
}

// WriteRetention outputs the retention report while holding the lock.
func (s *SyncWriter) WriteRetention(report *RetentionReport) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteRetention(report)
}
