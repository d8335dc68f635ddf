package robots

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/politecrawl/internal/transport"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher answers robots.txt requests with a fixed status and body.
type countingFetcher struct {
	calls  atomic.Int32
	mu     sync.Mutex
	status int
	body   string
	err    error
	delay  time.Duration
	urls   []string
}

func (f *countingFetcher) set(status int, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body, f.err = status, body, err
}

func (f *countingFetcher) Fetch(_ context.Context, req transport.Request) (*transport.Response, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, req.URL)
	if f.err != nil {
		return nil, f.err
	}
	return &transport.Response{URL: req.URL, StatusCode: f.status, Body: []byte(f.body)}, nil
}

func TestStorePolicyCachesFreshEntries(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{status: http.StatusOK, body: "User-agent: *\nDisallow: /private\n"}
	clock := newFakeClock()
	store := NewStore(fetcher, WithTTL(time.Hour), WithClock(clock.Now), WithUserAgent("politecrawl"))

	for range 3 {
		p, err := store.Policy(context.Background(), "https", "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.IsAllowed("/private", "politecrawl") {
			t.Fatal("/private should be disallowed")
		}
		if p.Source != SourceFetched || p.Host != "example.com" {
			t.Errorf("Source = %q Host = %q", p.Source, p.Host)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if fetcher.urls[0] != "https://example.com/robots.txt" {
		t.Errorf("fetched %q", fetcher.urls[0])
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStorePolicyRefreshesStaleEntries(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{status: http.StatusOK, body: "User-agent: *\nDisallow: /old\n"}
	clock := newFakeClock()
	store := NewStore(fetcher, WithTTL(time.Hour), WithClock(clock.Now))

	if _, err := store.Policy(context.Background(), "https", "example.com"); err != nil {
		t.Fatal(err)
	}

	fetcher.set(http.StatusOK, "User-agent: *\nDisallow: /new\n", nil)
	clock.Advance(time.Hour)

	p, err := store.Policy(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if p.IsAllowed("/new", "politecrawl") || !p.IsAllowed("/old", "politecrawl") {
		t.Error("stale policy was used after refresh")
	}
}

func TestStorePolicyStatusHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		err        error
		wantAllow  bool
		wantSource Source
	}{
		{name: "404 allows everything", status: http.StatusNotFound, wantAllow: true, wantSource: SourceNotFound},
		{name: "403 allows everything", status: http.StatusForbidden, wantAllow: true, wantSource: SourceNotFound},
		{name: "429 denies without cache", status: http.StatusTooManyRequests, wantAllow: false, wantSource: SourceUnreachable},
		{name: "500 denies without cache", status: http.StatusInternalServerError, wantAllow: false, wantSource: SourceUnreachable},
		{name: "network error denies without cache", err: errors.New("connection refused"), wantAllow: false, wantSource: SourceUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &countingFetcher{status: tt.status, err: tt.err}
			store := NewStore(fetcher)

			p, err := store.Policy(context.Background(), "https", "example.com")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.IsAllowed("/page", "politecrawl"); got != tt.wantAllow {
				t.Errorf("IsAllowed = %v, want %v", got, tt.wantAllow)
			}
			if p.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", p.Source, tt.wantSource)
			}
			if _, ok := p.DefaultCrawlDelay(); ok {
				t.Error("fallback policy should carry no crawl delay")
			}
		})
	}
}

func TestStoreFollowsRobotsRedirects(t *testing.T) {
	t.Parallel()

	var loopHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.Redirect(w, r, "/moved/robots.txt", http.StatusMovedPermanently)
		case "/moved/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/loop":
			loopHits.Add(1)
			http.Redirect(w, r, "/loop", http.StatusFound)
		}
	}))
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	t.Run("redirected robots.txt is honoured", func(t *testing.T) {
		t.Parallel()

		store := NewStore(transport.NewHTTPFetcher(srv.Client()))
		p, err := store.Policy(context.Background(), "http", host)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != SourceFetched {
			t.Errorf("Source = %q, want %q", p.Source, SourceFetched)
		}
		if p.IsAllowed("/private/data", "politecrawl") {
			t.Error("rules from the redirect target were not applied")
		}
	})

	t.Run("redirect loop stops at the limit", func(t *testing.T) {
		t.Parallel()

		fetcher := transport.NewHTTPFetcher(srv.Client())
		resp, err := NewStore(fetcher).fetchRobots(context.Background(), srv.URL+"/loop")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want 302", resp.StatusCode)
		}
		if got := loopHits.Load(); got != maxRobotsRedirects+1 {
			t.Errorf("loop requested %d times, want %d", got, maxRobotsRedirects+1)
		}
	})
}

func TestStoreNoResponseDenies(t *testing.T) {
	t.Parallel()

	fetcher := transport.FetcherFunc(func(context.Context, transport.Request) (*transport.Response, error) {
		return nil, nil
	})
	p, err := NewStore(fetcher).Policy(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source != SourceUnreachable || p.IsAllowed("/", "politecrawl") {
		t.Errorf("Source = %q allowed = %v, want unreachable deny-all", p.Source, p.IsAllowed("/", "politecrawl"))
	}
}

func TestStoreFailureKeepsPreviousPolicy(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{status: http.StatusOK, body: "User-agent: *\nDisallow: /private\n"}
	clock := newFakeClock()
	store := NewStore(fetcher, WithTTL(time.Hour), WithFailureTTL(time.Minute), WithClock(clock.Now))

	first, err := store.Policy(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatal(err)
	}

	fetcher.set(http.StatusServiceUnavailable, "", nil)
	clock.Advance(2 * time.Hour)

	second, err := store.Policy(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("expected the previously cached policy after a 503")
	}

	// The fallback is retried after the failure TTL, not the full TTL.
	clock.Advance(30 * time.Second)
	if _, err := store.Policy(context.Background(), "https", "example.com"); err != nil {
		t.Fatal(err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2 before failure TTL", got)
	}

	clock.Advance(time.Minute)
	fetcher.set(http.StatusOK, "User-agent: *\nAllow: /\n", nil)
	third, err := store.Policy(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got := fetcher.calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want 3 after failure TTL", got)
	}
	if !third.IsAllowed("/private", "politecrawl") {
		t.Error("expected refreshed policy")
	}
}

func TestStoreSingleFlight(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{
		status: http.StatusOK,
		body:   "User-agent: *\nDisallow: /x\n",
		delay:  50 * time.Millisecond,
	}
	store := NewStore(fetcher)

	const callers = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		fails atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := store.Policy(context.Background(), "https", "example.com")
			if err != nil || p.IsAllowed("/x", "politecrawl") {
				fails.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want exactly 1", got)
	}
	if fails.Load() != 0 {
		t.Errorf("%d callers got an unexpected policy", fails.Load())
	}
}

func TestStoreGracePeriod(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	fetcher := transport.FetcherFunc(func(_ context.Context, req transport.Request) (*transport.Response, error) {
		calls.Add(1)
		<-release
		return &transport.Response{URL: req.URL, StatusCode: http.StatusOK, Body: []byte("User-agent: *\nAllow: /\n")}, nil
	})
	store := NewStore(fetcher, WithGracePeriod(20*time.Millisecond))

	p, err := store.Policy(context.Background(), "https", "slow.example")
	if err != nil {
		t.Fatal(err)
	}
	if p.IsAllowed("/", "politecrawl") {
		t.Error("expected conservative deny-all while the first refresh is pending")
	}

	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if cached, ok := store.Cached("slow.example"); ok && cached.Source == SourceFetched {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("detached refresh never updated the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	p, err = store.Policy(context.Background(), "https", "slow.example")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsAllowed("/", "politecrawl") {
		t.Error("expected refreshed allow-all policy")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestStorePolicyErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty host", func(t *testing.T) {
		t.Parallel()

		store := NewStore(&countingFetcher{status: http.StatusOK})
		if _, err := store.Policy(context.Background(), "https", ""); !errors.Is(err, ErrEmptyHost) {
			t.Errorf("expected ErrEmptyHost, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		block := make(chan struct{})
		t.Cleanup(func() { close(block) })
		fetcher := transport.FetcherFunc(func(context.Context, transport.Request) (*transport.Response, error) {
			<-block
			return nil, errors.New("unreachable")
		})
		store := NewStore(fetcher, WithGracePeriod(time.Minute))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := store.Policy(ctx, "https", "example.com"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestStoreInvalidate(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{status: http.StatusNotFound}
	store := NewStore(fetcher)

	if _, err := store.Policy(context.Background(), "http", "example.com"); err != nil {
		t.Fatal(err)
	}
	store.Invalidate("example.com")
	if store.Len() != 0 {
		t.Errorf("Len() = %d after Invalidate", store.Len())
	}
	if _, err := store.Policy(context.Background(), "http", "example.com"); err != nil {
		t.Fatal(err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if fetcher.urls[0] != "http://example.com/robots.txt" {
		t.Errorf("fetched %q", fetcher.urls[0])
	}
}
