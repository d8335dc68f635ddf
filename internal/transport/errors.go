package transport

import "errors"

// Transport errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy could be made.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not speak SOCKS5
	// without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrTorNotRunning is returned when a client is requested from a stopped embedded Tor daemon.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")

	// ErrEmptyURL is returned when a request carries no URL.
	ErrEmptyURL = errors.New("request URL is empty")

	// ErrNoResponse is returned when a fetcher reports neither a response nor an error.
	ErrNoResponse = errors.New("fetcher returned no response")
)
