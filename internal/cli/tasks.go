package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/video-access/internal/database"
	"github.com/iliyamo/video-access/internal/queue"
	"github.com/iliyamo/video-access/internal/repository"
	"github.com/iliyamo/video-access/internal/service"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample users, videos and grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Seed(cmd.Context(), db, log)
		},
	}
}

// newCleanupCommand runs the hourly token sweep once, for cron setups that
// do not keep the server's scheduler.
func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired login codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()

			auth := service.NewAuthService(
				repository.NewUserRepo(db),
				repository.NewTokenRepo(db),
				nil, nil, queue.NoopPublisher{},
				service.DefaultAuthConfig(cfg.Env, cfg.Location()),
				log,
			)
			n, err := auth.CleanupExpiredTokens(cmd.Context())
			if err != nil {
				return fmt.Errorf("cleanup tokens: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired tokens\n", n)
			return nil
		},
	}
}
