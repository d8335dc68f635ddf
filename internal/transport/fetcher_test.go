package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(r.Header.Get("User-Agent") + "|" + r.Header.Get("X-Token")))
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		case "/missing":
			http.NotFound(w, r)
		case "/moved":
			http.Redirect(w, r, "/echo", http.StatusFound)
		}
	}))
	t.Cleanup(srv.Close)

	t.Run("sends user agent and static headers", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(srv.Client(), WithHeaders(map[string]string{"X-Token": "abc"}))
		resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/echo", UserAgent: "politebot/1.0"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := string(resp.Body); got != "politebot/1.0|abc" {
			t.Errorf("body = %q", got)
		}
		if resp.ContentType() != "text/plain" {
			t.Errorf("ContentType() = %q", resp.ContentType())
		}
	})

	t.Run("truncates at limit", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(srv.Client(), WithMaxBodySize(10))
		resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/big"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Body) != 10 || !resp.Truncated {
			t.Errorf("len = %d truncated = %v, want 10 true", len(resp.Body), resp.Truncated)
		}
	})

	t.Run("per request limit overrides", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(srv.Client(), WithMaxBodySize(10))
		resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/big", MaxBodySize: 200})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Body) != 100 || resp.Truncated {
			t.Errorf("len = %d truncated = %v, want 100 false", len(resp.Body), resp.Truncated)
		}
	})

	t.Run("non 2xx is not an error", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(srv.Client())
		resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/missing"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
	})

	t.Run("redirect is returned not followed", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(srv.Client())
		resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/moved"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want 302", resp.StatusCode)
		}
		if got := resp.Header.Get("Location"); got != "/echo" {
			t.Errorf("Location = %q, want /echo", got)
		}
		if resp.URL != srv.URL+"/moved" {
			t.Errorf("URL = %q, want the requested URL", resp.URL)
		}
		if srv.Client().CheckRedirect != nil {
			t.Error("fetcher changed the caller's client")
		}
	})

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(nil)
		if _, err := f.Fetch(context.Background(), Request{}); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("expected ErrEmptyURL, got %v", err)
		}
	})
}

func TestFetcherFunc(t *testing.T) {
	t.Parallel()

	var f Fetcher = FetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		return &Response{URL: req.URL, StatusCode: http.StatusTeapot}, nil
	})
	resp, err := f.Fetch(context.Background(), Request{URL: "http://x"})
	if err != nil || resp.StatusCode != http.StatusTeapot {
		t.Errorf("got %v, %v", resp, err)
	}
}
