package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/politecrawl/internal/crawler"
)

// FetchRecord is one row of the fetch audit log.
type FetchRecord struct {
	ID             int64         `json:"id"`
	URL            string        `json:"url"`
	Host           string        `json:"host"`
	Status         string        `json:"status"`
	HTTPStatus     int           `json:"http_status,omitempty"`
	RobotsBypassed bool          `json:"robots_bypassed"`
	Waited         time.Duration `json:"waited"`
	Error          string        `json:"error,omitempty"`
	FetchedAt      time.Time     `json:"fetched_at"`
}

// NewFetchRecord converts a fetch outcome into a log record. Outcomes that
// never reached the rate limiter carry no start time, so now is used.
func NewFetchRecord(out crawler.FetchOutcome, now time.Time) FetchRecord {
	rec := FetchRecord{
		URL:            out.URL,
		Host:           out.Host,
		Status:         out.Status.String(),
		HTTPStatus:     out.StatusCode(),
		RobotsBypassed: out.RobotsBypassed,
		Waited:         out.Waited,
		FetchedAt:      out.StartedAt,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = now
	}
	return rec
}

// NewPageRecord converts a crawled page into a log record.
func NewPageRecord(host string, p *crawler.Page, now time.Time) FetchRecord {
	rec := FetchRecord{
		URL:            p.URL,
		Host:           host,
		Status:         p.Status.String(),
		HTTPStatus:     p.StatusCode,
		RobotsBypassed: p.RobotsBypassed,
		Waited:         p.Waited,
		Error:          p.Error,
		FetchedAt:      p.FetchedAt,
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = now
	}
	return rec
}

// LogFetch appends a record to the fetch log.
func (s *Store) LogFetch(ctx context.Context, rec FetchRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO fetch_log (url, host, status, http_status, robots_bypassed, waited_ms, error, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.URL,
		rec.Host,
		rec.Status,
		rec.HTTPStatus,
		rec.RobotsBypassed,
		rec.Waited.Milliseconds(),
		rec.Error,
		formatTime(rec.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to log fetch: %w", err)
	}
	return nil
}

// FetchHistory returns the most recent fetch records, newest first.
// An empty host returns records for all hosts. limit <= 0 means no limit.
func (s *Store) FetchHistory(ctx context.Context, host string, limit int) ([]FetchRecord, error) {
	query := `
	SELECT id, url, host, status, http_status, robots_bypassed, waited_ms, error, fetched_at
	FROM fetch_log
	`
	args := make([]any, 0, 2)
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, host)
	}
	query += " ORDER BY fetched_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	records := make([]FetchRecord, 0)
	for rows.Next() {
		var (
			rec       FetchRecord
			waitedMS  int64
			fetchedAt string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.URL,
			&rec.Host,
			&rec.Status,
			&rec.HTTPStatus,
			&rec.RobotsBypassed,
			&waitedMS,
			&rec.Error,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fetch record: %w", err)
		}
		rec.Waited = time.Duration(waitedMS) * time.Millisecond
		rec.FetchedAt = parseTimestamp(fetchedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// FetchStats returns the number of logged fetches per status.
func (s *Store) FetchStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM fetch_log GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan fetch stats: %w", err)
		}
		stats[status] = n
	}
	return stats, rows.Err()
}
