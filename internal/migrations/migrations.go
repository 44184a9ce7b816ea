package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
)

//go:embed sqlite/001_processed_events_log.sql
var sqliteMig001 string

//go:embed postgres/001_processed_events_log.sql
var postgresMig001 string

// Migrations returns the processor's own schema for the given driver.
func Migrations(driver string) []db.Migration {
	if driver == config.DriverPostgres {
		return []db.Migration{
			{ID: "001_processed_events_log.sql", SQL: postgresMig001},
		}
	}

	return []db.Migration{
		{ID: "001_processed_events_log.sql", SQL: sqliteMig001},
	}
}

// RunMigrations creates the processed events log in the configured database.
func RunMigrations(cfg config.DatabaseConfig) error {
	return db.RunMigrations(cfg, Migrations(cfg.Driver))
}

// RunMigrationsDB creates the processed events log in an open database.
func RunMigrationsDB(log *logger.Logger, database *sql.DB, driver string) error {
	return db.RunMigrationsDB(log, database, driver, Migrations(driver))
}
