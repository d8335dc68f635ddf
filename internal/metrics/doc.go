// Package metrics exposes Prometheus instrumentation for the crawl engine.
//
// A Metrics value owns a private registry so that several engines (or tests)
// can coexist in one process. All recording methods are safe to call on a nil
// *Metrics, which lets components treat instrumentation as optional.
package metrics
