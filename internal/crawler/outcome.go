package crawler

import (
	"fmt"
	"time"

	"github.com/nao1215/politecrawl/internal/transport"
)

// Status is the result class of a fetch.
type Status int

const (
	// Success means the server answered with 2xx or 3xx.
	Success Status = iota
	// NetworkError is a transport failure or an unsuccessful HTTP status.
	NetworkError
	// PolicyDenied means robots.txt forbids the URL. Do not retry while the policy stands.
	PolicyDenied
	// RateLimitTimeout means no rate limit slot was granted in time. Safe to retry later.
	RateLimitTimeout
)

// String returns the status name used in logs, metrics and reports.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NetworkError:
		return "network_error"
	case PolicyDenied:
		return "policy_denied"
	case RateLimitTimeout:
		return "rate_limit_timeout"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for _, st := range []Status{Success, NetworkError, PolicyDenied, RateLimitTimeout} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownStatus, text)
}

// State is a step of the fetch lifecycle.
type State int

const (
	StatePending State = iota
	StatePolicyCheck
	StateRateLimitWait
	StateFetching
	// Terminal states.
	StateDenied
	StateTimedOut
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePolicyCheck:
		return "policy_check"
	case StateRateLimitWait:
		return "rate_limit_wait"
	case StateFetching:
		return "fetching"
	case StateDenied:
		return "denied"
	case StateTimedOut:
		return "timed_out"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s >= StateDenied
}

// FetchOutcome is the result of one RespectfulCrawler.Fetch call.
type FetchOutcome struct {
	// Status classifies the result.
	Status Status

	// State is the terminal lifecycle state.
	State State

	// URL is the requested URL.
	URL string

	// FinalURL is the URL of the last hop attempted. It differs from URL
	// when redirects were followed.
	FinalURL string

	// Redirects is the number of redirects followed.
	Redirects int

	// Host is the normalized host (lower-case ASCII, port kept).
	Host string

	// Response is set whenever the network was used, including HTTP errors.
	Response *transport.Response

	// Err explains every non-success status.
	Err error

	// RobotsBypassed is true when robots.txt checking was disabled for this fetch.
	RobotsBypassed bool

	// Waited is the time spent waiting for the rate limiter, summed over hops.
	Waited time.Duration

	// StartedAt is when the first request was granted by the rate limiter.
	StartedAt time.Time
}

// StatusCode returns the HTTP status code, or 0 when no response was received.
func (o FetchOutcome) StatusCode() int {
	if o.Response == nil {
		return 0
	}
	return o.Response.StatusCode
}
