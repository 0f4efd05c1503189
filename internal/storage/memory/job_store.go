// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

// JobStore implements jobs.Gateway over a map keyed by URL.
type JobStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*jobs.JobRecord
	byURL  map[string]int64
	clock  jobs.Clock
}

// Option customizes a JobStore.
type Option func(*JobStore)

// WithClock sets the clock used to stamp scraped_at.
func WithClock(c jobs.Clock) Option {
	return func(s *JobStore) {
		if c != nil {
			s.clock = c
		}
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NewJobStore constructs an empty JobStore.
func NewJobStore(opts ...Option) *JobStore {
	s := &JobStore{
		rows:  make(map[int64]*jobs.JobRecord),
		byURL: make(map[string]int64),
		clock: utcClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema is a no-op.
func (s *JobStore) EnsureSchema(context.Context) error { return nil }

// UpsertBatch inserts records whose URL is not yet stored. The batch is
// validated before anything is written.
func (s *JobStore) UpsertBatch(_ context.Context, records []jobs.JobRecord) (int, error) {
	for i, rec := range records {
		if strings.TrimSpace(rec.URL) == "" {
			return 0, fmt.Errorf("record %d: %w", i, jobs.ErrInvalidRecord)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		if _, exists := s.byURL[rec.URL]; exists {
			continue
		}
		s.nextID++
		row := rec
		row.ID = s.nextID
		row.ScrapedAt = s.clock.Now()
		if rec.Description != nil {
			d := *rec.Description
			row.Description = &d
		}
		s.rows[row.ID] = &row
		s.byURL[row.URL] = row.ID
		inserted++
	}
	return inserted, nil
}

// FetchPendingDescriptions returns rows without a description, newest first.
func (s *JobStore) FetchPendingDescriptions(_ context.Context, limit int) ([]jobs.PendingItem, error) {
	if limit <= 0 {
		limit = jobs.DefaultPendingLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*jobs.JobRecord, 0, len(s.rows))
	for _, row := range s.rows {
		if row.Description == nil {
			pending = append(pending, row)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ScrapedAt.Equal(pending[j].ScrapedAt) {
			return pending[i].ScrapedAt.After(pending[j].ScrapedAt)
		}
		return pending[i].ID > pending[j].ID
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]jobs.PendingItem, 0, len(pending))
	for _, row := range pending {
		out = append(out, jobs.PendingItem{ID: row.ID, URL: row.URL})
	}
	return out, nil
}

// UpdateDescription sets the description of one row.
func (s *JobStore) UpdateDescription(_ context.Context, id int64, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	d := description
	row.Description = &d
	return nil
}

// Get returns a copy of the row with id.
func (s *JobStore) Get(id int64) (jobs.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return jobs.JobRecord{}, false
	}
	out := *row
	if row.Description != nil {
		d := *row.Description
		out.Description = &d
	}
	return out, true
}

// Len reports the number of stored rows.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Close is a no-op.
func (s *JobStore) Close() {}
