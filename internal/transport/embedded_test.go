package transport

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != DefaultTorStartupTimeout {
			t.Errorf("startupTimeout = %v", e.startupTimeout)
		}
	})

	t.Run("custom timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(time.Minute))
		if e.startupTimeout != time.Minute {
			t.Errorf("startupTimeout = %v", e.startupTimeout)
		}
	})
}

func TestEmbeddedTorStopped(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()
	if e.IsRunning() {
		t.Error("expected not running")
	}
	if e.SocksAddr() != "" {
		t.Errorf("SocksAddr() = %q", e.SocksAddr())
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop() on stopped daemon: %v", err)
	}
	if _, err := e.NewClient(time.Second); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
