// Package enrich runs the detail phase: fill in descriptions for stored
// listings that do not have one yet.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/job-listing-ingest/internal/fallback"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/metrics"
	"github.com/JakeFAU/job-listing-ingest/internal/render"
)

// DefaultPlaceholderPattern matches demonstration URLs that are never fetched.
const DefaultPlaceholderPattern = `example\.com`

// Config tunes one enrichment run.
type Config struct {
	BatchLimit         int
	Delay              time.Duration
	SelectorTimeout    time.Duration
	MinTextLength      int
	MaxBodyLength      int
	Selectors          []string
	PlaceholderPattern string
	// Synthetic enables template descriptions for placeholder URLs and for
	// runs where no renderer could be started.
	Synthetic bool
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchLimit:         jobs.DefaultPendingLimit,
		Delay:              2 * time.Second,
		SelectorTimeout:    10 * time.Second,
		MinTextLength:      100,
		MaxBodyLength:      2000,
		Selectors:          DefaultSelectors,
		PlaceholderPattern: DefaultPlaceholderPattern,
		Synthetic:          true,
	}
}

// Report describes one detail-phase run.
type Report struct {
	Pending  int
	Updated  int
	Outcomes map[string]int
}

// Pipeline enriches pending rows one at a time.
type Pipeline struct {
	gateway     jobs.Gateway
	factory     render.Factory
	cfg         Config
	placeholder *regexp.Regexp
	extractor   extractor
	logger      *zap.Logger
}

// New validates cfg and builds a Pipeline. A nil factory behaves like render.Disabled.
func New(gateway jobs.Gateway, factory render.Factory, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if factory == nil {
		factory = render.Disabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaults.BatchLimit
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = defaults.SelectorTimeout
	}
	if cfg.MinTextLength < 0 {
		cfg.MinTextLength = defaults.MinTextLength
	}
	if cfg.MaxBodyLength <= 0 {
		cfg.MaxBodyLength = defaults.MaxBodyLength
	}
	if len(cfg.Selectors) == 0 {
		cfg.Selectors = defaults.Selectors
	}
	if cfg.PlaceholderPattern == "" {
		cfg.PlaceholderPattern = defaults.PlaceholderPattern
	}
	placeholder, err := regexp.Compile(cfg.PlaceholderPattern)
	if err != nil {
		return nil, fmt.Errorf("compile placeholder pattern: %w", err)
	}
	return &Pipeline{
		gateway:     gateway,
		factory:     factory,
		cfg:         cfg,
		placeholder: placeholder,
		extractor: extractor{
			selectors:       cfg.Selectors,
			selectorTimeout: cfg.SelectorTimeout,
			minTextLength:   cfg.MinTextLength,
			maxBodyLength:   cfg.MaxBodyLength,
			logger:          logger,
		},
		logger: logger,
	}, nil
}

// Run returns the number of rows whose description was written.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	report, err := p.Execute(ctx)
	return report.Updated, err
}

// Execute is Run with the full report.
func (p *Pipeline) Execute(ctx context.Context) (Report, error) {
	report := Report{Outcomes: map[string]int{}}
	pending, err := p.gateway.FetchPendingDescriptions(ctx, p.cfg.BatchLimit)
	if err != nil {
		return report, fmt.Errorf("fetch pending descriptions: %w", err)
	}
	report.Pending = len(pending)
	if len(pending) == 0 {
		p.logger.Info("no listings need descriptions")
		return report, nil
	}
	p.logger.Info("detail phase starting", zap.Int("pending", len(pending)))

	renderer, err := p.factory(ctx)
	if err != nil {
		p.logger.Warn("renderer setup failed, degrading to synthetic descriptions", zap.Error(err))
		renderer = nil
	}
	if renderer != nil {
		defer renderer.Close()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.Delay), 1)
	}

	for _, item := range pending {
		start := time.Now()
		if err := limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("enrichment pacing: %w", err)
		}
		metrics.ObserveEnrichWait(time.Since(start))

		desc, ok := p.describe(ctx, renderer, item)
		if !ok {
			p.logger.Debug("left without description", zap.Int64("job_id", item.ID))
			continue
		}
		if err := p.gateway.UpdateDescription(ctx, item.ID, desc.Text); err != nil {
			return report, fmt.Errorf("update description for job %d: %w", item.ID, err)
		}
		report.Updated++
		report.Outcomes[desc.Outcome]++
		metrics.ObserveDescription(desc.Outcome)
		p.logger.Info("description updated",
			zap.Int64("job_id", item.ID),
			zap.String("outcome", desc.Outcome),
		)
	}
	p.logger.Info("detail phase finished", zap.Int("updated", report.Updated), zap.Int("pending", report.Pending))
	return report, nil
}

// describe runs the render tier then the synthetic tier for one item.
func (p *Pipeline) describe(ctx context.Context, renderer render.Renderer, item jobs.PendingItem) (extracted, bool) {
	isPlaceholder := p.placeholder.MatchString(item.URL)
	chain := fallback.New(
		func(v extracted) bool { return v.Text != "" },
		p.logger.With(zap.Int64("job_id", item.ID)),
		fallback.Tier[extracted]{
			Name: "render",
			Produce: func(ctx context.Context) (extracted, error) {
				if renderer == nil || (isPlaceholder && p.cfg.Synthetic) {
					return extracted{}, fallback.ErrSkip
				}
				if err := renderer.Navigate(ctx, item.URL); err != nil {
					p.logger.Warn("render failed", zap.Int64("job_id", item.ID), zap.String("url", item.URL), zap.Error(err))
					return extracted{Text: errorDescription(err), Outcome: OutcomeError}, nil
				}
				return p.extractor.extract(ctx, renderer), nil
			},
		},
		fallback.Tier[extracted]{
			Name: OutcomeSynthetic,
			Produce: func(context.Context) (extracted, error) {
				if !p.cfg.Synthetic {
					return extracted{}, fallback.ErrSkip
				}
				return extracted{Text: SyntheticDescription(item.ID), Outcome: OutcomeSynthetic}, nil
			},
		},
	)
	res := chain.Run(ctx)
	return res.Value, res.OK
}
