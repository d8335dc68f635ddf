package ratelimit

import "errors"

var (
	// ErrAcquireTimeout is returned when no slot was granted within the wait budget.
	ErrAcquireTimeout = errors.New("rate limit wait exceeded")

	// ErrEmptyHost is returned when Acquire is called without a host.
	ErrEmptyHost = errors.New("host is empty")
)
