// Package ingest runs the list phase: acquire, normalize, persist.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/metrics"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
	"github.com/JakeFAU/job-listing-ingest/internal/source"
)

// DefaultSearchTerms are used when the caller supplies none.
var DefaultSearchTerms = []string{"Data Analyst", "Python Developer", "Data Scientist", "Business Analyst"}

// Acquirer yields raw records for search terms and never fails.
type Acquirer interface {
	Acquire(ctx context.Context, terms []string) source.Result
}

// Report describes one list-phase run.
type Report struct {
	Tier       string
	Acquired   int
	Normalized int
	Inserted   int
}

// Pipeline drives one list-phase run.
type Pipeline struct {
	acquirer     Acquirer
	gateway      jobs.Gateway
	defaultTerms []string
	logger       *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDefaultTerms overrides DefaultSearchTerms.
func WithDefaultTerms(terms []string) Option {
	return func(p *Pipeline) {
		if len(terms) > 0 {
			p.defaultTerms = append([]string(nil), terms...)
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a Pipeline.
func New(acquirer Acquirer, gateway jobs.Gateway, opts ...Option) *Pipeline {
	p := &Pipeline{
		acquirer:     acquirer,
		gateway:      gateway,
		defaultTerms: DefaultSearchTerms,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run returns the number of rows newly inserted by the gateway.
func (p *Pipeline) Run(ctx context.Context, terms []string) (int, error) {
	report, err := p.Execute(ctx, terms)
	return report.Inserted, err
}

// Execute is Run with the full report.
func (p *Pipeline) Execute(ctx context.Context, terms []string) (Report, error) {
	if len(terms) == 0 {
		terms = p.defaultTerms
	}
	p.logger.Info("list phase starting", zap.Strings("terms", terms))

	res := p.acquirer.Acquire(ctx, terms)
	report := Report{Tier: res.Tier, Acquired: len(res.Records)}
	if len(res.Records) == 0 {
		p.logger.Info("no records acquired")
		return report, nil
	}

	records := normalize.NormalizeAll(res.Records)
	report.Normalized = len(records)
	if dropped := report.Acquired - report.Normalized; dropped > 0 {
		p.logger.Debug("dropped unusable records", zap.Int("dropped", dropped))
	}
	if len(records) == 0 {
		return report, nil
	}

	inserted, err := p.gateway.UpsertBatch(ctx, records)
	if err != nil {
		return report, fmt.Errorf("persist listings: %w", err)
	}
	report.Inserted = inserted
	metrics.ObserveInserted(inserted)
	p.logger.Info("list phase finished",
		zap.String("tier", report.Tier),
		zap.Int("acquired", report.Acquired),
		zap.Int("normalized", report.Normalized),
		zap.Int("inserted", report.Inserted),
	)
	return report, nil
}
