package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func initGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration. goose tracks applied versions
// in its own goose_db_version table.
func MigrateUp(db *sql.DB, log *slog.Logger) error {
	if err := initGoose(); err != nil {
		return err
	}
	from, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("migrations applied", "from_version", from, "to_version", to)
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(db *sql.DB, steps int, log *slog.Logger) error {
	if err := initGoose(); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		if err := goose.Down(db, migrationsDir); err != nil {
			return fmt.Errorf("rollback step %d: %w", i+1, err)
		}
	}
	log.Info("migrations rolled back", "steps", steps)
	return nil
}

// MigrationStatus prints the applied state of every migration.
func MigrationStatus(db *sql.DB) error {
	if err := initGoose(); err != nil {
		return err
	}
	return goose.Status(db, migrationsDir)
}
