package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/pkg/database"
	"github.com/riskmonitor/engine/pkg/observability"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Validate configuration and check database/Redis connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitUsage)
			}
			logger := observability.NewLogger(cfg.Observability)

			db, err := database.NewPostgresDB(cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				return fmt.Errorf("database health check failed: %w", err)
			}

			redis, err := database.NewRedisClient(cfg.Redis, logger)
			if err != nil {
				return fmt.Errorf("redis unreachable: %w", err)
			}
			defer redis.Close()

			fmt.Println("config ok, database reachable, redis reachable")
			return nil
		},
	}
}
