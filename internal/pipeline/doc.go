// Package pipeline runs crawl jobs through a sequence of steps and
// processes many targets with bounded concurrency.
//
// A crawl job passes through crawling, persistence, retention and report
// generation. Each stage is a Step that receives the job and can modify
// it. BatchProcessor runs one pipeline per target; BatchFetcher fetches a
// list of URLs through the engine, where robots rules and per-host delays
// still apply to every request regardless of the worker count.
//
// Both batch types use errgroup with SetLimit for concurrency control.
package pipeline
