package db

import (
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/russross/meddler"
)

// pgxDriverName is the database/sql driver registered by pgx/v5/stdlib.
const pgxDriverName = "pgx"

// Open opens the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresDBFromConfig(cfg)
	case config.DriverSQLite, "":
		return NewSQLiteDBFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Dialect returns the meddler dialect matching the configured driver.
func Dialect(driver string) *meddler.Database {
	if driver == config.DriverPostgres {
		return meddler.PostgreSQL
	}
	return meddler.SQLite
}

// BindType returns the sqlx placeholder style for the configured driver.
func BindType(driver string) int {
	if driver == config.DriverPostgres {
		return sqlx.BindType(pgxDriverName)
	}
	return sqlx.BindType(config.DriverSQLite)
}

// NewSQLiteDB creates a new SQLite DB
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=on&_journal_mode=WAL&_busy_timeout=30000",
		dbPath,
	))
}

// NewSQLiteDBFromConfig creates a new SQLite DB with the given configuration.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	foreignKeys := "off"
	if cfg.EnableForeignKeys {
		foreignKeys = "on"
	}

	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_foreign_keys=%s&_journal_mode=%s&_busy_timeout=%d",
		cfg.Path,
		foreignKeys,
		cfg.JournalMode,
		cfg.BusyTimeout,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	pragmas := []string{
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return db, nil
}

// NewPostgresDBFromConfig opens a PostgreSQL pool through the pgx stdlib driver.
func NewPostgresDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(pgxDriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
