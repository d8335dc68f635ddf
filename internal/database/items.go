package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/politecrawl/internal/privacy"
)

// SaveItems inserts items in one transaction. An item whose ID already
// exists is replaced.
func (s *Store) SaveItems(ctx context.Context, items []privacy.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO items (id, source_url, field, value, category, collected_at, anonymized)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		value = excluded.value,
		anonymized = excluded.anonymized
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.SourceURL,
			item.Field,
			item.Value,
			string(item.Category),
			formatTime(item.CollectedAt),
			item.Anonymized,
		); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// ItemFilter narrows ListItems. Zero fields do not filter.
type ItemFilter struct {
	// Category restricts items to one category.
	Category privacy.Category

	// SourceURL restricts items to one page.
	SourceURL string

	// CollectedBefore restricts items to those collected before the time.
	CollectedBefore time.Time
}

// ListItems returns stored items ordered by collection time.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]privacy.Item, error) {
	return listItems(ctx, s.db, filter)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listItems(ctx context.Context, q queryer, filter ItemFilter) ([]privacy.Item, error) {
	query := `
	SELECT id, source_url, field, value, category, collected_at, anonymized
	FROM items
	WHERE 1=1
	`
	args := make([]any, 0, 3)

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.SourceURL != "" {
		query += " AND source_url = ?"
		args = append(args, filter.SourceURL)
	}
	if !filter.CollectedBefore.IsZero() {
		query += " AND collected_at < ?"
		args = append(args, formatTime(filter.CollectedBefore))
	}
	query += " ORDER BY collected_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]privacy.Item, 0)
	for rows.Next() {
		var (
			item        privacy.Item
			category    string
			collectedAt string
		)
		if err := rows.Scan(
			&item.ID,
			&item.SourceURL,
			&item.Field,
			&item.Value,
			&category,
			&collectedAt,
			&item.Anonymized,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Category = privacy.Category(category)
		item.CollectedAt = parseTimestamp(collectedAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

// CountItems returns the number of stored items per category.
func (s *Store) CountItems(ctx context.Context) (map[privacy.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM items GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[privacy.Category]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		counts[privacy.Category(category)] = n
	}
	return counts, rows.Err()
}

// purgeBatchSize caps the bound parameters of one purge statement, well
// under SQLite's host parameter limit.
const purgeBatchSize = 500

// ApplyRetention runs privacy.Sweep over the stored items of every
// category that has a policy and writes the result back in one
// transaction: purged items are deleted and anonymized items updated.
func (s *Store) ApplyRetention(ctx context.Context, policies map[privacy.Category]privacy.RetentionPolicy, now time.Time, anon *privacy.Anonymizer) (privacy.SweepResult, error) {
	if len(policies) == 0 {
		return privacy.SweepResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return privacy.SweepResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var items []privacy.Item
	for _, policy := range privacy.SortedPolicies(policies) {
		found, err := listItems(ctx, tx, ItemFilter{
			Category:        policy.Category,
			CollectedBefore: now.Add(-policy.MaxAge),
		})
		if err != nil {
			return privacy.SweepResult{}, err
		}
		items = append(items, found...)
	}

	res := privacy.Sweep(items, policies, now, anon)

	for batch := range slices.Chunk(res.Purged, purgeBatchSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id IN ("+placeholders+")", args...); err != nil {
			return privacy.SweepResult{}, fmt.Errorf("failed to purge items: %w", err)
		}
	}
	for _, item := range res.Anonymized {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET value = ?, anonymized = 1 WHERE id = ?`,
			item.Value, item.ID,
		); err != nil {
			return privacy.SweepResult{}, fmt.Errorf("failed to anonymize item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return privacy.SweepResult{}, fmt.Errorf("failed to commit retention: %w", err)
	}
	return res, nil
}
