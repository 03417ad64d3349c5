// Package cmd implements the cargohold command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipyardlabs/cargohold/internal/config"
	"github.com/shipyardlabs/cargohold/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo injects build metadata from the release pipeline.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cargohold",
	Short: "Encrypted chunked file distribution service",
	Long: `cargohold splits files into fixed-size encrypted chunks, records
distribution jobs in a durable queue, and executes them asynchronously
through a detached worker process.

Run 'cargohold serve' for the API server, 'cargohold worker' for the job
executor, and 'cargohold jobs' to inspect the queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to YAML config file (defaults + CARGOHOLD_ env vars otherwise)")
}

// Execute runs the CLI.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := observability.Init(observability.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
