// Package cmd provides the waterbill commands.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterbill/internal/config"
	"waterbill/internal/observability/logging"
	"waterbill/internal/storage/postgres"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "waterbill",
	Short: "Water utility billing service",
	Long: `waterbill runs the billing API and its operator tasks.

Examples:
  waterbill serve
  waterbill migrate
  waterbill quote --usage 12.5 --type residential --rates rates.yaml
  waterbill rates import rates.yaml
  waterbill admin create --email ops@example.com --role admin`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(adminCmd)
}

func loadConfig() (config.Config, *zap.Logger, error) {
	if cfgFile != "" {
		if err := os.Setenv(config.EnvConfigPath, cfgFile); err != nil {
			return config.Config{}, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, logger, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or PG_DSN is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
}
