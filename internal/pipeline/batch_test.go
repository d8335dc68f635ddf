package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/engine"
)

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []BatchOption
		want int
	}{
		{"default concurrency", nil, defaultConcurrency},
		{"custom concurrency", []BatchOption{WithConcurrency(7)}, 7},
		{"ignores non-positive concurrency", []BatchOption{WithConcurrency(0)}, defaultConcurrency},
		{"nil logger keeps default", []BatchOption{WithBatchLogger(nil)}, defaultConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bp := NewBatchProcessor(func() *Pipeline { return New() }, tt.opts...)
			if bp.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", bp.concurrency, tt.want)
			}
			if bp.logger == nil {
				t.Error("expected non-nil logger")
			}
		})
	}
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all targets in order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, job *Job) error {
				processed.Add(1)
				job.Result = &engine.CrawlResult{StartURL: job.Target}
				return nil
			}})
			return p
		})

		targets := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
		jobs, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("processed = %d, want 3", processed.Load())
		}
		for i, job := range jobs {
			if job.Target != targets[i] || job.Result.StartURL != targets[i] {
				t.Errorf("jobs[%d] = %+v, want target %s", i, job, targets[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *Job) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			}})
			return p
		}, WithConcurrency(2))

		targets := make([]string, 6)
		for i := range targets {
			targets[i] = "https://example.com/"
		}
		if _, err := bp.ProcessBatch(context.Background(), targets); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("failed target does not stop others", func(t *testing.T) {
		t.Parallel()

		errFail := errors.New("unreachable")
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, job *Job) error {
				if job.Target == "bad" {
					return errFail
				}
				return nil
			}})
			return p
		})

		jobs, err := bp.ProcessBatch(context.Background(), []string{"good", "bad", "good"})
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if !errors.Is(jobs[1].Err, errFail) {
			t.Errorf("jobs[1].Err = %v, want %v", jobs[1].Err, errFail)
		}
		if jobs[0].Err != nil || jobs[2].Err != nil {
			t.Error("successful jobs must not carry errors")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })
		jobs, err := bp.ProcessBatch(ctx, []string{"a", "b"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ProcessBatch() error = %v, want context.Canceled", err)
		}
		for _, job := range jobs {
			if !job.Cancelled {
				t.Errorf("job %s not marked cancelled", job.Target)
			}
		}
	})
}

// recordingFetcher records the concurrency and order of fetches.
type recordingFetcher struct {
	mu      sync.Mutex
	current int
	peak    int
	seen    []string
	delay   time.Duration
}

func (f *recordingFetcher) Fetch(ctx context.Context, rawURL, userAgent string, maxWait time.Duration) crawler.FetchOutcome {
	f.mu.Lock()
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.seen = append(f.seen, rawURL+"|"+userAgent)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}

	f.mu.Lock()
	f.current--
	f.mu.Unlock()

	return crawler.FetchOutcome{Status: crawler.Success, State: crawler.StateSucceeded, URL: rawURL, Waited: maxWait}
}

func TestBatchFetcher(t *testing.T) {
	t.Parallel()

	t.Run("fetches all urls in order", func(t *testing.T) {
		t.Parallel()

		f := &recordingFetcher{delay: 10 * time.Millisecond}
		bf := NewBatchFetcher(f, "ua", time.Second, WithConcurrency(3))

		urls := []string{"https://a/1", "https://a/2", "https://b/1", "https://b/2", "https://c/1"}
		outcomes, err := bf.FetchAll(context.Background(), urls)
		if err != nil {
			t.Fatalf("FetchAll() error = %v", err)
		}
		for i, out := range outcomes {
			if out.URL != urls[i] || out.Status != crawler.Success || out.Waited != time.Second {
				t.Errorf("outcomes[%d] = %+v", i, out)
			}
		}
		if f.peak > 3 {
			t.Errorf("peak concurrency = %d, want <= 3", f.peak)
		}
		for _, s := range f.seen {
			if s[len(s)-3:] != "|ua" {
				t.Errorf("fetch %s did not use the user agent", s)
			}
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := &recordingFetcher{}
		bf := NewBatchFetcher(f, "", time.Second)
		outcomes, err := bf.FetchAll(ctx, []string{"https://a/1", "https://a/2"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("FetchAll() error = %v, want context.Canceled", err)
		}
		for i, out := range outcomes {
			if out.Status != crawler.RateLimitTimeout || out.State != crawler.StateTimedOut {
				t.Errorf("outcomes[%d] = %+v, want rate_limit_timeout", i, out)
			}
		}
		if len(f.seen) != 0 {
			t.Errorf("fetched %v after cancellation", f.seen)
		}
	})
}
