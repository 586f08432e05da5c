// Command familyxp runs the family points service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dukerupert/familyxp/internal/config"
	"github.com/dukerupert/familyxp/internal/database"
	"github.com/dukerupert/familyxp/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "familyxp: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "familyxp",
	Short:         "Family task and reward points service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "familyxp.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// bootstrap loads configuration, sets up logging and opens the migrated
// database shared by every command.
func bootstrap(ctx context.Context) (*config.Config, *sql.DB, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	logger := logging.Setup(cfg.Server.LogLevel)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		return nil, nil, nil, err
	}
	if v, err := database.Version(ctx, db); err == nil {
		logger.Debug("database ready", "path", cfg.Database.Path, "schema_version", v)
	}
	return cfg, db, logger, nil
}
