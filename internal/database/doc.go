// Package database provides SQLite-based storage for politecrawl.
//
// The Store keeps:
//   - collected items that passed the privacy checker
//   - an audit log of every fetch outcome, including policy denials
//
// Retention is applied inside one transaction so that purged and
// anonymized items never coexist with their originals.
//
// SQLite (via modernc.org/sqlite) keeps the database a single CGO-free
// file; WAL mode lets reports read while a crawl writes.
package database
