// Package ratelimit gates outbound requests per host.
//
// Every host gets its own state, created lazily and kept for the lifetime of
// the Limiter. State for one host is guarded by its own mutex; the host
// registry is a sync.Map, so no lock spans hosts.
//
// Acquire waits until the host's current delay has elapsed since the last
// granted request and a concurrency slot is free. Waiters for one host are
// served in arrival order. Release feeds the fetch outcome back: failures
// and throttling multiply the delay (capped), successes decay it back toward
// the base delay over a few steps.
//
//	permit, err := limiter.Acquire(ctx, "example.com", 30*time.Second)
//	if err != nil {
//		return err // ErrAcquireTimeout or ctx.Err()
//	}
//	resp, err := fetch()
//	limiter.Release(permit.Host, ratelimit.Success)
package ratelimit
