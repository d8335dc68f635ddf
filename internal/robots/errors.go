package robots

import "errors"

var (
	// ErrRobotsFetch is logged when robots.txt could not be retrieved because of
	// a transport failure, 429 or 5xx. It never fails a lookup; the store falls
	// back to the cached or conservative policy instead.
	ErrRobotsFetch = errors.New("robots.txt fetch failed")

	// ErrEmptyHost is returned when a policy is requested for an empty host.
	ErrEmptyHost = errors.New("host is empty")
)
