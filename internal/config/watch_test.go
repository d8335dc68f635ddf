package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchReloadsChangedFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "workers: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *File, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cf *File) { reloaded <- cf })
	}()

	// Rewrite until the watcher, which starts asynchronously, reports a change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case cf := <-reloaded:
			if cf.Workers == nil || *cf.Workers != 6 {
				t.Errorf("reloaded workers = %v, want 6", cf.Workers)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() = %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("workers: 6\n"), 0600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	t.Parallel()

	err := Watch(context.Background(), "/nonexistent/dir/.politecrawl", nil, func(*File) {})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
