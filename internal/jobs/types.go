// Package jobs defines the canonical job listing types shared across the ingestion phases.
package jobs

import (
	"errors"
	"time"
)

// Defaults applied when a source omits a field.
const (
	DefaultTitle      = "N/A"
	DefaultCompany    = "N/A"
	DefaultLocation   = "Remote"
	SalaryUnspecified = "Not specified"
)

// Provenance tags carried in JobRecord.SourceSite.
const (
	SourceWellfound      = "Wellfound"
	SourceWeWorkRemotely = "WeWorkRemotely"
	SourceSynthetic      = "Synthetic"
)

// DefaultPendingLimit bounds one enrichment run.
const DefaultPendingLimit = 10

// ErrInvalidRecord is returned by stores when a record has no URL.
var ErrInvalidRecord = errors.New("job record requires a url")

// JobRecord is the canonical listing persisted by the gateway.
// URL is the identity key: the first write for a URL wins.
type JobRecord struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	SalaryInfo  string    `json:"salary_info"`
	Description *string   `json:"description,omitempty"`
	SourceSite  string    `json:"source_site"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// PendingItem is a stored row that still lacks a description.
type PendingItem struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Phase names a top-level run.
type Phase string

// Run phases.
const (
	PhaseList   Phase = "list"
	PhaseDetail Phase = "detail"
)

// RunSummary is published after each phase completes.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Phase      Phase     `json:"phase"`
	Tier       string    `json:"tier,omitempty"`
	Acquired   int       `json:"acquired"`
	Persisted  int       `json:"persisted"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ErrorText  string    `json:"error_text,omitempty"`
}
