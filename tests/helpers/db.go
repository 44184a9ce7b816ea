package helpers

import (
	"database/sql"
	"path"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/migrations"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewTestDBConfig returns a SQLite configuration pointing into a temporary directory.
func NewTestDBConfig(t *testing.T, dbName string) config.DatabaseConfig {
	t.Helper()

	dbConfig := config.DatabaseConfig{Path: path.Join(t.TempDir(), dbName)}
	dbConfig.ApplyDefaults()

	return dbConfig
}

// NewTestDB creates a new temporary SQLite database with the processed events log in place.
func NewTestDB(t *testing.T, dbName string) *sql.DB {
	t.Helper()

	dbConfig := NewTestDBConfig(t, dbName)
	require.NoError(t, migrations.RunMigrations(dbConfig))

	database, err := db.NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}
