// Package engine wires the compliance components into one object.
//
// An Engine owns the robots.txt policy store, the per-host rate limiter,
// the respectful crawler and the privacy checker built from a validated
// config.Config. All host state lives in those registries, so independent
// engines never share state. An Engine is safe for concurrent use.
package engine
