// Package fallback implements an ordered fallback over fallible producers.
// Tiers run in order and the first accepted result short-circuits the rest.
package fallback

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrSkip signals that a tier does not apply and the chain should move on quietly.
var ErrSkip = errors.New("tier skipped")

// Tier is one named stage of a Chain.
type Tier[T any] struct {
	Name    string
	Produce func(ctx context.Context) (T, error)
}

// Result reports the value produced by the winning tier.
type Result[T any] struct {
	Value T
	// Tier is the name of the tier that produced Value; empty when OK is false.
	Tier string
	OK   bool
}

// Chain tries tiers in order until one yields an accepted value.
type Chain[T any] struct {
	tiers  []Tier[T]
	accept func(T) bool
	logger *zap.Logger
}

// New builds a chain. accept decides whether a tier's value ends the chain;
// a nil accept treats every error-free value as accepted.
func New[T any](accept func(T) bool, logger *zap.Logger, tiers ...Tier[T]) *Chain[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain[T]{
		tiers:  tiers,
		accept: accept,
		logger: logger,
	}
}

// Run executes the tiers. It never returns an error: a failing tier is logged
// and the chain advances to the next one.
func (c *Chain[T]) Run(ctx context.Context) Result[T] {
	for _, tier := range c.tiers {
		if tier.Produce == nil {
			continue
		}
		value, err := tier.Produce(ctx)
		switch {
		case errors.Is(err, ErrSkip):
			c.logger.Debug("fallback tier skipped", zap.String("tier", tier.Name))
			continue
		case err != nil:
			c.logger.Warn("fallback tier failed", zap.String("tier", tier.Name), zap.Error(err))
			continue
		}
		if c.accept != nil && !c.accept(value) {
			c.logger.Debug("fallback tier produced no usable result", zap.String("tier", tier.Name))
			continue
		}
		return Result[T]{Value: value, Tier: tier.Name, OK: true}
	}
	return Result[T]{}
}

// NonEmpty accepts slices with at least one element.
func NonEmpty[E any](values []E) bool {
	return len(values) > 0
}
