package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"travel-package-scraper/config"
	"travel-package-scraper/storage"
	"travel-package-scraper/utils"
)

var (
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "travel-scraper",
	Short: "Scrape travel agency packages and rank them against a trip",
	Long: `travel-scraper crawls agency websites through a tiered extraction cascade,
normalizes and deduplicates the packages it finds into PostgreSQL, and ranks
stored packages against a trip description.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logger = utils.NewLoggerWithConfig(utils.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func openPostgres(ctx context.Context) (*storage.PostgresStore, error) {
	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to PostgreSQL: %w", err)
	}
	if err := store.CreateSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
