package db

import (
	"database/sql"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, journal string) (*sql.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	cfg := config.DatabaseConfig{Path: dbPath, JournalMode: journal}
	cfg.ApplyDefaults()

	database, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database, dbPath
}

func TestDialectAndBindType(t *testing.T) {
	t.Parallel()

	require.Equal(t, meddler.SQLite, Dialect(config.DriverSQLite))
	require.Equal(t, meddler.PostgreSQL, Dialect(config.DriverPostgres))
	require.Equal(t, sqlx.QUESTION, BindType(config.DriverSQLite))
	require.Equal(t, sqlx.DOLLAR, BindType(config.DriverPostgres))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestRunMigrationsDB(t *testing.T) {
	t.Parallel()

	database, _ := newTestSQLite(t, "WAL")

	migs := []Migration{
		{
			ID:     "001_accounts.sql",
			Prefix: "test_",
			SQL: `-- +migrate Down
DROP TABLE IF EXISTS /*dbprefix*/accounts;

-- +migrate Up
CREATE TABLE /*dbprefix*/accounts (id TEXT PRIMARY KEY, balance TEXT);`,
		},
	}

	require.NoError(t, RunMigrationsDB(logger.NewNopLogger(), database, config.DriverSQLite, migs))
	// second run is a no-op
	require.NoError(t, RunMigrationsDB(logger.NewNopLogger(), database, config.DriverSQLite, migs))

	_, err := database.Exec(`INSERT INTO test_accounts (id, balance) VALUES ('alice', '1')`)
	require.NoError(t, err)
}

func TestRunMigrationsDB_MissingSeparator(t *testing.T) {
	t.Parallel()

	database, _ := newTestSQLite(t, "WAL")

	err := RunMigrationsDB(logger.NewNopLogger(), database, config.DriverSQLite, []Migration{
		{ID: "broken.sql", SQL: "CREATE TABLE broken (id INTEGER);"},
	})
	require.ErrorContains(t, err, "missing '-- +migrate Up' separator")
}

func TestBigIntMeddler(t *testing.T) {
	t.Parallel()

	database, _ := newTestSQLite(t, "WAL")
	_, err := database.Exec(`CREATE TABLE balances (id INTEGER PRIMARY KEY AUTOINCREMENT, free TEXT)`)
	require.NoError(t, err)

	type balance struct {
		ID   int64    `meddler:"id,pk"`
		Free *big.Int `meddler:"free,bigint"`
	}

	huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)

	require.NoError(t, meddler.Insert(database, "balances", &balance{Free: huge}))
	require.NoError(t, meddler.Insert(database, "balances", &balance{}))

	var rows []*balance
	require.NoError(t, meddler.QueryAll(database, &rows, `SELECT * FROM balances ORDER BY id`))
	require.Len(t, rows, 2)
	require.Equal(t, 0, huge.Cmp(rows[0].Free))
	require.Nil(t, rows[1].Free)

	require.Error(t, meddler.Insert(database, "balances", &balance{Free: big.NewInt(-1)}))
}

func TestBigIntMeddler_TextOrderIsNumeric(t *testing.T) {
	t.Parallel()

	database, _ := newTestSQLite(t, "WAL")
	_, err := database.Exec(`CREATE TABLE balances (id INTEGER PRIMARY KEY AUTOINCREMENT, free TEXT)`)
	require.NoError(t, err)

	type balance struct {
		ID   int64    `meddler:"id,pk"`
		Free *big.Int `meddler:"free,bigint"`
	}

	for _, v := range []int64{20, 100, 3} {
		require.NoError(t, meddler.Insert(database, "balances", &balance{Free: big.NewInt(v)}))
	}

	var rows []*balance
	require.NoError(t, meddler.QueryAll(database, &rows, `SELECT * FROM balances ORDER BY free`))
	require.Len(t, rows, 3)
	require.Equal(t, "3", rows[0].Free.String())
	require.Equal(t, "20", rows[1].Free.String())
	require.Equal(t, "100", rows[2].Free.String())

	bound, err := FormatBigInt(big.NewInt(20))
	require.NoError(t, err)
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM balances WHERE free > ?`, bound).Scan(&n))
	require.Equal(t, 1, n)
}

func TestFormatBigInt(t *testing.T) {
	s, err := FormatBigInt(big.NewInt(680))
	require.NoError(t, err)
	require.Len(t, s, BigIntDigits)
	require.True(t, strings.HasSuffix(s, "680"))

	_, err = FormatBigInt(big.NewInt(-5))
	require.Error(t, err)

	tooWide := new(big.Int).Exp(big.NewInt(10), big.NewInt(BigIntDigits), nil)
	_, err = FormatBigInt(tooWide)
	require.Error(t, err)
}

func TestDBTotalSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.db")

	size, err := DBTotalSize(mainPath)
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, os.WriteFile(mainPath, []byte("main-db"), 0o600))
	require.NoError(t, os.WriteFile(mainPath+"-wal", []byte("wal-content"), 0o600))

	size, err = DBTotalSize(mainPath)
	require.NoError(t, err)
	require.Equal(t, int64(len("main-db")+len("wal-content")), size)
}
