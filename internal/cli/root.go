// Package cli holds the cobra commands of the server binary.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/video-access/internal/config"
	"github.com/iliyamo/video-access/internal/database"
	"github.com/iliyamo/video-access/internal/logger"
)

// Version is stamped at build time with -ldflags "-X .../cli.Version=...".
var Version = "dev"

// NewRootCommand builds the command tree. Without a subcommand the HTTP
// server starts.
func NewRootCommand() *cobra.Command {
	serve := newServeCommand()
	root := &cobra.Command{
		Use:           "server",
		Short:         "Video access API",
		Long:          `Passwordless e-mail login and per-user video entitlements over HTTP, with migration and maintenance commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE:          serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(
		serve,
		newMigrateCommand(),
		newSeedCommand(),
		newCleanupCommand(),
	)
	return root
}

// bootstrap loads configuration, installs the logger and opens the
// database. Every command starts here.
func bootstrap() (config.Config, *slog.Logger, *sql.DB, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connected", "host", cfg.DB.Host, "name", cfg.DB.Name, "tls", cfg.DB.TLS)
	return cfg, log, db, nil
}
