// Package sqlite provides a single-file listing gateway backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

// DefaultTable is the listings table name.
const DefaultTable = "job_listings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config selects the database file. Path ":memory:" opens a private in-memory database.
type Config struct {
	Path  string
	Table string
}

// JobStore implements jobs.Gateway on SQLite.
type JobStore struct {
	db    *sql.DB
	table string
}

// Open opens (or creates) the database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*JobStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("store.dsn is required for sqlite")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; for :memory: this also keeps every query on the same database.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &JobStore{db: db, table: table}, nil
}

// Close closes the database handle.
func (s *JobStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// EnsureSchema creates the listings table and its pending-work index.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	create := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_title TEXT,
	company_name TEXT,
	location TEXT,
	job_url TEXT UNIQUE,
	salary_info TEXT,
	job_description TEXT,
	source_site TEXT,
	scraped_at TEXT DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
)`, s.table)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_pending_idx ON %s (scraped_at DESC) WHERE job_description IS NULL`,
		s.table, s.table,
	)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create pending index: %w", err)
	}
	return nil
}

// UpsertBatch inserts the batch in one transaction and skips URLs that already exist.
func (s *JobStore) UpsertBatch(ctx context.Context, records []jobs.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i, rec := range records {
		if strings.TrimSpace(rec.URL) == "" {
			return 0, fmt.Errorf("record %d: %w", i, jobs.ErrInvalidRecord)
		}
	}
	query := fmt.Sprintf(`
INSERT OR IGNORE INTO %s (
	job_title, company_name, location, job_url, salary_info, job_description, source_site
) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, rec := range records {
		var description any
		if rec.Description != nil {
			description = *rec.Description
		}
		res, err := stmt.ExecContext(ctx,
			rec.Title, rec.Company, rec.Location, rec.URL, rec.SalaryInfo, description, rec.SourceSite,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing %s: %w", rec.URL, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, nil
}

// FetchPendingDescriptions returns rows with no description, newest first.
func (s *JobStore) FetchPendingDescriptions(ctx context.Context, limit int) ([]jobs.PendingItem, error) {
	if limit <= 0 {
		limit = jobs.DefaultPendingLimit
	}
	query := fmt.Sprintf(`
SELECT id, job_url
FROM %s
WHERE job_description IS NULL
ORDER BY scraped_at DESC, id DESC
LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending descriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []jobs.PendingItem
	for rows.Next() {
		var item jobs.PendingItem
		if err := rows.Scan(&item.ID, &item.URL); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending rows: %w", err)
	}
	return out, nil
}

// UpdateDescription sets job_description for one row.
func (s *JobStore) UpdateDescription(ctx context.Context, id int64, description string) error {
	query := fmt.Sprintf(`UPDATE %s SET job_description = ? WHERE id = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, description, id)
	if err != nil {
		return fmt.Errorf("update description for job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}

// Description returns the stored description for a row, or nil when unset.
func (s *JobStore) Description(ctx context.Context, id int64) (*string, error) {
	query := fmt.Sprintf(`SELECT job_description FROM %s WHERE id = ?`, s.table)
	var d sql.NullString
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&d); err != nil {
		return nil, fmt.Errorf("read description for job %d: %w", id, err)
	}
	if !d.Valid {
		return nil, nil
	}
	return &d.String, nil
}
