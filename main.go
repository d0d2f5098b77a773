package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/locvowork/employee_directory/internal/bootstrap"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "employee-directory",
		Short:         "Employee directory API and source synchronization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newSyncCmd(), newMigrateCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the daily sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app := bootstrap.NewApp()
			if err := app.Initialize(ctx); err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one employee sync and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app := bootstrap.NewApp()
			if err := app.Initialize(ctx); err != nil {
				return err
			}
			defer app.Close()

			report, err := app.SyncSvc.RunSync(ctx)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	run := func(fn func(ctx context.Context, app *bootstrap.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app := bootstrap.NewApp()
			if err := app.InitializeCore(ctx); err != nil {
				return err
			}
			defer app.Close()
			return fn(ctx, app)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(ctx context.Context, app *bootstrap.App) error {
				return database.Migrate(ctx, app.DB.DB)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: run(func(ctx context.Context, app *bootstrap.App) error {
				return database.MigrateDown(ctx, app.DB.DB)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print migration status",
			RunE: run(func(ctx context.Context, app *bootstrap.App) error {
				return database.MigrationStatus(ctx, app.DB.DB)
			}),
		},
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.ErrorLog(ctx, "Command failed: %v", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
