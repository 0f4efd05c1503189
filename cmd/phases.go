package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Creates the listings table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			// The pre-run hook already provisioned the table.
			rt.logger.Info("schema ready", zap.String("driver", rt.cfg.Store.Driver), zap.String("table", rt.cfg.Store.Table))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [search terms...]",
		Short: "Runs the list phase",
		Long: `Acquires listings from the first source tier that yields usable records
and upserts them keyed by URL. Without arguments the configured search
terms are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := rt.app.RunList(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("list phase: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
}

func newDetailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detail",
		Short: "Runs the detail phase",
		Long:  `Fills in descriptions for the newest listings that still lack one.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := rt.app.RunDetail(cmd.Context())
			if err != nil {
				return fmt.Errorf("detail phase: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [search terms...]",
		Short: "Runs the list phase and then the detail phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			list, err := rt.app.RunList(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("list phase: %w", err)
			}
			if err := printSummary(cmd.OutOrStdout(), list); err != nil {
				return err
			}
			detail, err := rt.app.RunDetail(cmd.Context())
			if err != nil {
				return fmt.Errorf("detail phase: %w", err)
			}
			return printSummary(cmd.OutOrStdout(), detail)
		},
	}
}
