// Package cmd defines the jobingest CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/app"
	"github.com/JakeFAU/job-listing-ingest/internal/config"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/logging"
)

// App is the service surface the commands use. Tests swap in a mock through newApp.
type App interface {
	EnsureSchema(ctx context.Context) error
	RunList(ctx context.Context, terms []string) (jobs.RunSummary, error)
	RunDetail(ctx context.Context) (jobs.RunSummary, error)
	Pending(ctx context.Context, limit int) ([]jobs.PendingItem, error)
	Close()
}

type appKeyType struct{}

type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	app    App
}

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

var loadConfig = config.Load

// newRootCmd builds the command tree. The returned cleanup closes the
// services opened by the pre-run hook and must run after Execute, whether or
// not the command failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		opened  *runtime
	)
	cmd := &cobra.Command{
		Use:   "jobingest",
		Short: "Ingests job listings and enriches them with descriptions.",
		Long: `jobingest collects job listings in two phases. The list phase pulls
listings from a cascade of sources and upserts them keyed by URL. The detail
phase renders each listing page and stores its description.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			if err := a.EnsureSchema(cmd.Context()); err != nil {
				a.Close()
				return err
			}
			opened = &runtime{cfg: cfg, logger: logger, app: a}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, opened))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env JOBINGEST_* overrides)")

	cmd.AddCommand(
		newSchemaCmd(),
		newListCmd(),
		newDetailCmd(),
		newRunCmd(),
		newServeCmd(),
	)

	cleanup := func() {
		if opened == nil {
			return
		}
		opened.app.Close()
		_ = opened.logger.Sync()
		opened = nil
	}
	return cmd, cleanup
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(appKeyType{}).(*runtime)
	if !ok || rt == nil || rt.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

func printSummary(w io.Writer, summary jobs.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}

// Execute runs the root command until completion or SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobingest:", err)
		stop()
		os.Exit(1)
	}
}
