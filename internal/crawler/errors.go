package crawler

import "errors"

var (
	// ErrPolicyDenied is wrapped by outcomes for URLs disallowed by robots.txt.
	ErrPolicyDenied = errors.New("disallowed by robots.txt")

	// ErrHTTPStatus is wrapped by outcomes for non-success HTTP status codes.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTooManyRedirects is wrapped by outcomes whose redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrInvalidURL is wrapped by outcomes for URLs that cannot be fetched.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnknownStatus is returned when decoding an unknown status name.
	ErrUnknownStatus = errors.New("unknown fetch status")
)
