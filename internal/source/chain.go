package source

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/fallback"
	"github.com/JakeFAU/job-listing-ingest/internal/metrics"
	"github.com/JakeFAU/job-listing-ingest/internal/normalize"
)

// Result is the outcome of one acquisition. Tier is empty when every provider came back empty.
type Result struct {
	Records []normalize.RawRecord
	Tier    string
}

// Chain tries providers in order and keeps the first one that yields at least
// one usable record.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain builds a Chain over providers, in fallback order.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger}
}

// Acquire never fails. Provider errors are logged and treated as empty.
func (c *Chain) Acquire(ctx context.Context, terms []string) Result {
	tiers := make([]fallback.Tier[[]normalize.RawRecord], 0, len(c.providers))
	for _, p := range c.providers {
		if p == nil {
			continue
		}
		tiers = append(tiers, fallback.Tier[[]normalize.RawRecord]{
			Name:    p.Name(),
			Produce: c.produce(p, terms),
		})
	}

	res := fallback.New(hasUsable, c.logger, tiers...).Run(ctx)
	if !res.OK {
		c.logger.Warn("all sources came back empty", zap.Strings("terms", terms))
		return Result{}
	}
	metrics.ObserveAcquired(res.Tier, len(res.Value))
	c.logger.Info("acquired raw records", zap.String("tier", res.Tier), zap.Int("count", len(res.Value)))
	return Result{Records: res.Value, Tier: res.Tier}
}

func (c *Chain) produce(p Provider, terms []string) func(context.Context) ([]normalize.RawRecord, error) {
	return func(ctx context.Context) ([]normalize.RawRecord, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := p.Fetch(ctx, terms)
		if errors.Is(err, ErrBlocked) {
			c.logger.Info("source blocked, falling through", zap.String("tier", p.Name()))
			return nil, nil
		}
		return records, err
	}
}

// hasUsable reports whether at least one record normalizes to a JobRecord.
func hasUsable(records []normalize.RawRecord) bool {
	for _, r := range records {
		if _, ok := normalize.Normalize(r); ok {
			return true
		}
	}
	return false
}
