package cli

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/video-access/internal/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			return database.MigrateDown(db, steps, log)
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, log, db, err := bootstrap()
				if err != nil {
					return err
				}
				defer db.Close()
				return database.MigrateUp(db, log)
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied state of every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _, db, err := bootstrap()
				if err != nil {
					return err
				}
				defer db.Close()
				return database.MigrationStatus(db)
			},
		},
	)
	return cmd
}
