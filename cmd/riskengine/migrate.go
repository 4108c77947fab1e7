package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/store"
	"github.com/riskmonitor/engine/pkg/database"
	"github.com/riskmonitor/engine/pkg/observability"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsage)
			}
			logger := observability.NewLogger(cfg.Observability)

			db, err := database.NewPostgresDB(cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if err := store.Migrate(context.Background(), db); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			logger.Info(context.Background(), "schema applied", nil)
			return nil
		},
	}
}
