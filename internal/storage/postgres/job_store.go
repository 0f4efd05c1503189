// Package postgres provides the Postgres-backed listing gateway.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

// DefaultTable is the listings table name.
const DefaultTable = "job_listings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// JobStore implements jobs.Gateway on Postgres.
type JobStore struct {
	pool  pgxPool
	table string
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the listings table and its pending-work index.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	create := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	job_title VARCHAR(255),
	company_name VARCHAR(255),
	location VARCHAR(255),
	job_url VARCHAR(512) UNIQUE,
	salary_info TEXT,
	job_description TEXT,
	source_site VARCHAR(100),
	scraped_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`, s.table)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_pending_idx ON %s (scraped_at DESC) WHERE job_description IS NULL`,
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
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
INSERT INTO %s (
	job_title,
	company_name,
	location,
	job_url,
	salary_info,
	job_description,
	source_site
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (job_url) DO NOTHING`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	inserted := 0
	for _, rec := range records {
		tag, err := tx.Exec(ctx, query,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.URL,
			rec.SalaryInfo,
			rec.Description,
			rec.SourceSite,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("insert listing %s: %w", rec.URL, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
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
LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending descriptions: %w", err)
	}
	defer rows.Close()

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
	query := fmt.Sprintf(`UPDATE %s SET job_description = $1 WHERE id = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, description, id)
	if err != nil {
		return fmt.Errorf("update description for job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}
