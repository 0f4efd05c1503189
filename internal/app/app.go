// Package app builds the long-lived services from configuration and runs the
// list and detail phases on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/clock/system"
	"github.com/JakeFAU/job-listing-ingest/internal/config"
	"github.com/JakeFAU/job-listing-ingest/internal/enrich"
	collyfetcher "github.com/JakeFAU/job-listing-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/job-listing-ingest/internal/id/uuid"
	"github.com/JakeFAU/job-listing-ingest/internal/ingest"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/metrics"
	memorypublisher "github.com/JakeFAU/job-listing-ingest/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/job-listing-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/job-listing-ingest/internal/ratelimit"
	"github.com/JakeFAU/job-listing-ingest/internal/render"
	"github.com/JakeFAU/job-listing-ingest/internal/runlock"
	"github.com/JakeFAU/job-listing-ingest/internal/source"
	gcsstorage "github.com/JakeFAU/job-listing-ingest/internal/storage/gcs"
	localstorage "github.com/JakeFAU/job-listing-ingest/internal/storage/local"
	memorystorage "github.com/JakeFAU/job-listing-ingest/internal/storage/memory"
	pgstore "github.com/JakeFAU/job-listing-ingest/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/job-listing-ingest/internal/storage/sqlite"
)

// EventRunCompleted is the event name attached to published run summaries.
const EventRunCompleted = "run.completed"

// ErrBusy is returned when a run is requested while another one is in flight.
var ErrBusy = errors.New("a run is already in progress")

// Run statuses recorded in metrics.
const (
	statusOK    = "ok"
	statusError = "error"
	statusBusy  = "busy"
)

// Services are the collaborators an App runs against. Zero fields are filled
// with in-process defaults by NewWithServices.
type Services struct {
	Gateway   jobs.Gateway
	Acquirer  ingest.Acquirer
	Renderer  render.Factory
	Publisher jobs.Publisher
	IDs       jobs.IDGenerator
	Clock     jobs.Clock
	// Closers run in reverse order on Close.
	Closers []func() error
}

// App holds the shared services and serializes runs.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	gateway   jobs.Gateway
	list      *ingest.Pipeline
	detail    *enrich.Pipeline
	publisher jobs.Publisher
	ids       jobs.IDGenerator
	clock     jobs.Clock
	closers   []func() error

	running sync.Mutex
}

// New builds every service named by cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var svc Services
	cleanup := func() {
		for i := len(svc.Closers) - 1; i >= 0; i-- {
			_ = svc.Closers[i]()
		}
	}

	gateway, err := buildGateway(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	svc.Gateway = gateway
	svc.Closers = append(svc.Closers, func() error { gateway.Close(); return nil })

	blobs, closeBlobs, err := buildArchive(ctx, cfg.Archive)
	if err != nil {
		cleanup()
		return nil, err
	}
	if closeBlobs != nil {
		svc.Closers = append(svc.Closers, closeBlobs)
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg.PubSub)
	if err != nil {
		cleanup()
		return nil, err
	}
	svc.Publisher = publisher
	if closePublisher != nil {
		svc.Closers = append(svc.Closers, closePublisher)
	}

	archive := source.NewArchive(blobs, cfg.Archive.Prefix, logger.Named("archive"))
	svc.Acquirer = buildAcquirer(cfg, archive, logger.Named("source"))
	svc.Renderer = render.NewFactory(render.Config{
		Enabled:           cfg.Headless.Enabled,
		UserAgent:         cfg.HTTP.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		NoSandbox:         cfg.Headless.NoSandbox,
		ExecPath:          cfg.Headless.ExecPath,
	})

	a, err := NewWithServices(cfg, svc, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("archive", cfg.Archive.Driver),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)
	return a, nil
}

// NewWithServices wires an App around prebuilt services.
func NewWithServices(cfg config.Config, svc Services, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if svc.Acquirer == nil {
		return nil, fmt.Errorf("acquirer is required")
	}
	if svc.Publisher == nil {
		svc.Publisher = memorypublisher.New()
	}
	if svc.IDs == nil {
		svc.IDs = uuid.New()
	}
	if svc.Clock == nil {
		svc.Clock = system.New()
	}

	list := ingest.New(svc.Acquirer, svc.Gateway,
		ingest.WithDefaultTerms(cfg.List.SearchTerms),
		ingest.WithLogger(logger.Named("ingest")),
	)
	detail, err := enrich.New(svc.Gateway, svc.Renderer, cfg.EnrichSettings(), logger.Named("enrich"))
	if err != nil {
		return nil, fmt.Errorf("build detail pipeline: %w", err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		gateway:   svc.Gateway,
		list:      list,
		detail:    detail,
		publisher: svc.Publisher,
		ids:       svc.IDs,
		clock:     svc.Clock,
		closers:   svc.Closers,
	}, nil
}

// EnsureSchema provisions the listings table.
func (a *App) EnsureSchema(ctx context.Context) error {
	if err := a.gateway.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Pending lists rows still waiting for a description.
func (a *App) Pending(ctx context.Context, limit int) ([]jobs.PendingItem, error) {
	items, err := a.gateway.FetchPendingDescriptions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending: %w", err)
	}
	return items, nil
}

// RunList executes one list phase and publishes its summary.
func (a *App) RunList(ctx context.Context, terms []string) (jobs.RunSummary, error) {
	return a.run(ctx, jobs.PhaseList, func(ctx context.Context, summary *jobs.RunSummary) error {
		report, err := a.list.Execute(ctx, terms)
		summary.Tier = report.Tier
		summary.Acquired = report.Acquired
		summary.Persisted = report.Inserted
		return err
	})
}

// RunDetail executes one detail phase and publishes its summary.
func (a *App) RunDetail(ctx context.Context) (jobs.RunSummary, error) {
	return a.run(ctx, jobs.PhaseDetail, func(ctx context.Context, summary *jobs.RunSummary) error {
		report, err := a.detail.Execute(ctx)
		summary.Acquired = report.Pending
		summary.Persisted = report.Updated
		return err
	})
}

func (a *App) run(
	ctx context.Context,
	phase jobs.Phase,
	body func(context.Context, *jobs.RunSummary) error,
) (jobs.RunSummary, error) {
	if !a.running.TryLock() {
		metrics.ObserveRun(string(phase), statusBusy)
		return jobs.RunSummary{}, ErrBusy
	}
	defer a.running.Unlock()

	lock, err := runlock.Acquire(a.cfg.Lock.Path)
	if err != nil {
		metrics.ObserveRun(string(phase), statusBusy)
		if errors.Is(err, runlock.ErrLocked) {
			return jobs.RunSummary{}, fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return jobs.RunSummary{}, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			a.logger.Warn("release run lock failed", zap.Error(rerr))
		}
	}()

	runID, err := a.ids.NewID()
	if err != nil {
		return jobs.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	ctx = jobs.WithRunID(ctx, runID)
	logger := a.logger.With(zap.String("run_id", runID), zap.String("phase", string(phase)))

	summary := jobs.RunSummary{RunID: runID, Phase: phase, StartedAt: a.clock.Now()}
	runErr := body(ctx, &summary)
	summary.FinishedAt = a.clock.Now()

	status := statusOK
	if runErr != nil {
		status = statusError
		summary.ErrorText = runErr.Error()
		logger.Error("run failed", zap.Error(runErr))
	} else {
		logger.Info("run finished",
			zap.String("tier", summary.Tier),
			zap.Int("acquired", summary.Acquired),
			zap.Int("persisted", summary.Persisted),
			zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		)
	}
	metrics.ObserveRun(string(phase), status)

	// Publish failures are logged only.
	pubCtx := context.WithoutCancel(ctx)
	if _, perr := a.publisher.Publish(pubCtx, EventRunCompleted, summary); perr != nil {
		logger.Warn("publish run summary failed", zap.Error(perr))
	}
	return summary, runErr
}

// Close releases every owned backend in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

func buildGateway(ctx context.Context, cfg config.StoreConfig) (jobs.Gateway, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:      cfg.DSN,
			Table:    cfg.Table,
			MaxConns: int32(cfg.MaxConns), // #nosec G115 -- small configured value
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return memorystorage.NewJobStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func buildArchive(ctx context.Context, cfg config.ArchiveConfig) (jobs.BlobStore, func() error, error) {
	switch cfg.Driver {
	case "", config.ArchiveNone:
		return nil, nil, nil
	case config.ArchiveMemory:
		return memorystorage.NewBlobStore(), nil, nil
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local archive: %w", err)
		}
		return store, nil, nil
	case config.ArchiveGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.GCSBucket, Endpoint: cfg.GCSEndpoint})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive driver: %s", cfg.Driver)
	}
}

func buildPublisher(ctx context.Context, cfg config.PubSubConfig) (jobs.Publisher, func() error, error) {
	if cfg.TopicName == "" {
		return memorypublisher.New(), nil, nil
	}
	pub, err := gcppublisher.Open(ctx, gcppublisher.Config{ProjectID: cfg.ProjectID, TopicName: cfg.TopicName})
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	return pub, pub.Close, nil
}

func buildAcquirer(cfg config.Config, archive *source.Archive, logger *zap.Logger) *source.Chain {
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RatePerSecond, Burst: cfg.HTTP.Burst})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, collyfetcher.WithLimiter(limiter))
	providers := []source.Provider{
		source.NewWellfound(source.WellfoundConfig{
			URL:         cfg.Sources.PrimaryURL,
			OperationID: cfg.Sources.PrimaryOperationID,
			UserAgent:   cfg.HTTP.UserAgent,
		}, fetcher, archive, logger),
		source.NewWeWorkRemotely(source.WeWorkRemotelyConfig{
			URL:       cfg.Sources.SecondaryURL,
			Keywords:  cfg.Sources.Keywords,
			MaxItems:  cfg.Sources.MaxItems,
			UserAgent: cfg.HTTP.UserAgent,
		}, fetcher, archive, logger),
	}
	if cfg.Synthetic.Enabled {
		providers = append(providers, source.Synthetic{})
	}
	return source.NewChain(logger, providers...)
}
