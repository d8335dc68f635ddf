package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/politecrawl/internal/config"
	"github.com/nao1215/politecrawl/internal/crawler"
	"github.com/nao1215/politecrawl/internal/database"
	"github.com/nao1215/politecrawl/internal/engine"
	"github.com/nao1215/politecrawl/internal/privacy"
	"github.com/nao1215/politecrawl/internal/report"
	"github.com/nao1215/politecrawl/internal/transport"
)

type fakeCrawler struct {
	result *engine.CrawlResult
	err    error
}

func (f *fakeCrawler) Crawl(_ context.Context, startURL string) (*engine.CrawlResult, error) {
	if f.result != nil {
		f.result.StartURL = startURL
	}
	return f.result, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	items   []privacy.Item
	records []database.FetchRecord
	err     error
}

func (f *fakeStore) SaveItems(_ context.Context, items []privacy.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, items...)
	return f.err
}

func (f *fakeStore) LogFetch(_ context.Context, rec database.FetchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

var stepTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResult() *engine.CrawlResult {
	return &engine.CrawlResult{
		Host: "example.com",
		Pages: []*crawler.Page{
			{URL: "https://example.com/", Status: crawler.Success, StatusCode: 200, FetchedAt: stepTime},
			{URL: "https://example.com/private", Status: crawler.PolicyDenied, Error: "disallowed by robots.txt"},
		},
		Items: []privacy.Item{
			privacy.NewItem("https://example.com/", "title", "Home", privacy.Public, stepTime),
		},
	}
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("stores result", func(t *testing.T) {
		t.Parallel()

		step := NewCrawlStep(&fakeCrawler{result: sampleResult()})
		job := NewJob("https://example.com/")
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if job.Result == nil || job.Result.StartURL != "https://example.com/" {
			t.Errorf("Result = %+v", job.Result)
		}
		if step.Name() != "crawl" {
			t.Errorf("Name() = %s", step.Name())
		}
	})

	t.Run("keeps partial result on error", func(t *testing.T) {
		t.Parallel()

		errCrawl := errors.New("boom")
		step := NewCrawlStep(&fakeCrawler{result: sampleResult(), err: errCrawl})
		job := NewJob("https://example.com/")
		if err := step.Do(context.Background(), job); !errors.Is(err, errCrawl) {
			t.Fatalf("Do() error = %v, want %v", err, errCrawl)
		}
		if job.Result == nil {
			t.Error("expected partial result")
		}
	})
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("logs pages and saves items", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		now := stepTime.Add(time.Hour)
		step := NewPersistStep(store, WithPersistClock(func() time.Time { return now }))

		job := &Job{Result: sampleResult()}
		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(store.records) != 2 || len(store.items) != 1 {
			t.Fatalf("records = %d, items = %d", len(store.records), len(store.items))
		}
		if !store.records[0].FetchedAt.Equal(stepTime) {
			t.Errorf("fetched page time = %v, want %v", store.records[0].FetchedAt, stepTime)
		}
		if !store.records[1].FetchedAt.Equal(now) || store.records[1].Status != "policy_denied" {
			t.Errorf("denied page record = %+v", store.records[1])
		}
		if store.records[1].Host != "example.com" {
			t.Errorf("Host = %s", store.records[1].Host)
		}
	})

	t.Run("no result", func(t *testing.T) {
		t.Parallel()

		step := NewPersistStep(&fakeStore{})
		if err := step.Do(context.Background(), NewJob("x")); !errors.Is(err, ErrNoResult) {
			t.Errorf("Do() error = %v, want ErrNoResult", err)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		errStore := errors.New("disk full")
		step := NewPersistStep(&fakeStore{err: errStore})
		if err := step.Do(context.Background(), &Job{Result: sampleResult()}); !errors.Is(err, errStore) {
			t.Errorf("Do() error = %v, want %v", err, errStore)
		}
	})
}

type fakeRetentionSource struct {
	policies map[privacy.Category]privacy.RetentionPolicy
}

func (f fakeRetentionSource) RetentionPolicies() map[privacy.Category]privacy.RetentionPolicy {
	return f.policies
}

func (f fakeRetentionSource) Anonymizer() *privacy.Anonymizer {
	return nil
}

func TestRetentionStep(t *testing.T) {
	t.Parallel()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	items := []privacy.Item{
		privacy.NewItem("https://example.com/", "email", "old@example.com", privacy.Contact, stepTime.Add(-48*time.Hour)),
		privacy.NewItem("https://example.com/", "email", "new@example.com", privacy.Contact, stepTime),
	}
	if err := store.SaveItems(ctx, items); err != nil {
		t.Fatalf("SaveItems() error = %v", err)
	}

	source := fakeRetentionSource{policies: map[privacy.Category]privacy.RetentionPolicy{
		privacy.Contact: {Category: privacy.Contact, MaxAge: 24 * time.Hour, Action: privacy.Anonymize},
	}}
	step := NewRetentionStep(store, source, WithRetentionClock(func() time.Time { return stepTime }))

	job := NewJob("x")
	if err := step.Do(ctx, job); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if job.Sweep == nil || len(job.Sweep.Anonymized) != 1 || job.Sweep.Anonymized[0].ID != items[0].ID {
		t.Fatalf("Sweep = %+v", job.Sweep)
	}

	stored, err := store.ListItems(ctx, database.ItemFilter{Category: privacy.Contact})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if stored[0].Value != "[REDACTED:contact]" || stored[1].Value != "new@example.com" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewReportStep(report.NewSimpleWriter(&buf))

	if err := step.Do(context.Background(), NewJob("x")); !errors.Is(err, ErrNoResult) {
		t.Errorf("Do() without result error = %v, want ErrNoResult", err)
	}

	job := &Job{Result: sampleResult()}
	if err := step.Do(context.Background(), job); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !strings.Contains(buf.String(), "POLITECRAWL REPORT") {
		t.Error("expected report output")
	}
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>Team</title></head>
<body><a href="/about">About</a><a href="/private/x">Private</a>
<p>Contact jane@example.com</p></body></html>`

	var mu sync.Mutex
	privateHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case strings.HasPrefix(r.URL.Path, "/private"):
			mu.Lock()
			privateHits++
			mu.Unlock()
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.UserAgent = "politecrawl-test"
	cfg.MinDelay = 5 * time.Millisecond
	cfg.CrawlDepth = 1

	eng, err := engine.New(cfg, transport.NewHTTPFetcher(srv.Client()))
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	p := DefaultPipeline(eng, store, report.NewJSONWriter(&out))

	if got := strings.Join(p.StepNames(), ","); got != "crawl,persist,retention,report" {
		t.Fatalf("StepNames() = %s", got)
	}

	job := NewJob(srv.URL + "/")
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if job.Err != nil {
		t.Fatalf("job.Err = %v", job.Err)
	}

	mu.Lock()
	hits := privateHits
	mu.Unlock()
	if hits != 0 {
		t.Errorf("disallowed path fetched %d times", hits)
	}

	ctx := context.Background()
	records, err := store.FetchHistory(ctx, "", 0)
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(records) != len(job.Result.Pages) {
		t.Errorf("fetch log has %d records, want %d", len(records), len(job.Result.Pages))
	}
	items, err := store.ListItems(ctx, database.ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(items) == 0 || len(items) != len(job.Result.Items) {
		t.Errorf("stored %d items, crawl collected %d", len(items), len(job.Result.Items))
	}

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if _, ok := decoded["summary"]; !ok {
		t.Error("report has no summary")
	}

	t.Run("without store or writer", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(eng, nil, nil)
		if got := strings.Join(p.StepNames(), ","); got != "crawl" {
			t.Errorf("StepNames() = %s, want crawl", got)
		}
	})
}
