// Package main provides the entry point for the politecrawl CLI.
//
// politecrawl fetches and crawls web sites while honoring robots.txt,
// spacing requests per host and filtering collected data through
// privacy rules before anything is stored.
//
// Usage:
//
//	politecrawl fetch <url>...
//	politecrawl crawl <url>...
//	politecrawl robots <url>
//
// See --help for all available options.
package main

// main is the entry point for politecrawl.
func main() {
	Execute()
}
