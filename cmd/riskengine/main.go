// Command riskengine runs the multi-chain position and risk monitoring
// engine: a poll-driven ingestion pipeline, a risk calculator registry,
// and a threshold/alert engine, wired together the way
// cmd/web3-service/main.go wires its web3/trading/alert services.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes match the CLI surface named for the engine: 0 clean, 1
// operational failure (config/connection/runtime error), 2 usage error.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	// Best-effort: a missing .env is normal in production, where config
	// comes from the real environment.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "riskengine",
		Short:        "Multi-chain DeFi position and risk monitoring engine",
		SilenceUsage: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
		return nil
	})

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVerifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}
