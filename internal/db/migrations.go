package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	UpDownSeparator     = "-- +migrate Up"
	downMarker          = "-- +migrate Down"
	dbPrefixReplacer    = "/*dbprefix*/"
	NoLimitMigrations   = 0 // indicate that there is no limit on the number of migrations to run
	migrationDirections = 2
)

// Migration is a single embedded SQL file with "-- +migrate Down" and "-- +migrate Up" sections.
// Prefix replaces /*dbprefix*/ in the SQL and namespaces the migration id.
type Migration struct {
	ID     string
	SQL    string
	Prefix string
}

// RunMigrations opens the configured database and applies all pending migrations.
func RunMigrations(cfg config.DatabaseConfig, migrations []Migration) error {
	database, err := Open(cfg)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	defer database.Close()

	return RunMigrationsDB(logger.GetDefaultLogger(), database, cfg.Driver, migrations)
}

// RunMigrationsDB applies all pending migrations on an open database.
func RunMigrationsDB(log *logger.Logger, db *sql.DB, driver string, migrationsParam []Migration) error {
	return RunMigrationsDBExtended(log, db, driver, migrationsParam, migrate.Up, NoLimitMigrations)
}

// RunMigrationsDBExtended is an extended version of RunMigrationsDB that allows
// dir: can be migrate.Up or migrate.Down
// maxMigrations: Will apply at most `max` migrations. Pass 0 for no limit (or use Exec)
func RunMigrationsDBExtended(log *logger.Logger,
	db *sql.DB,
	driver string,
	migrationsParam []Migration,
	dir migrate.MigrationDirection,
	maxMigrations int) error {
	migs := &migrate.MemoryMigrationSource{Migrations: []*migrate.Migration{}}
	// In case of partial execution we ignore the base migrations
	if maxMigrations != NoLimitMigrations {
		migrate.SetIgnoreUnknown(true)
	}

	for _, m := range migrationsParam {
		parsed, err := parseMigration(m)
		if err != nil {
			return err
		}
		migs.Migrations = append(migs.Migrations, parsed)
	}

	ids := make([]string, 0, len(migs.Migrations))
	for _, m := range migs.Migrations {
		ids = append(ids, m.Id)
	}
	listMigrations := strings.Join(ids, ", ")

	log.Debugf("running migrations: (max %d/%d) migrations: %s", maxMigrations,
		len(migs.Migrations), listMigrations)

	nMigrations, err := migrate.ExecMax(db, migrateDialect(driver), migs, dir, maxMigrations)
	if err != nil {
		return fmt.Errorf("error executing migration (max %d/%d) migrations: %s . Err: %w",
			maxMigrations, len(migs.Migrations), listMigrations, err)
	}

	log.Infof("successfully ran %d migrations from migrations: %s", nMigrations, listMigrations)
	return nil
}

func parseMigration(m Migration) (*migrate.Migration, error) {
	prefixed := strings.ReplaceAll(m.SQL, dbPrefixReplacer, m.Prefix)
	splitted := strings.Split(prefixed, UpDownSeparator)

	if len(splitted) < migrationDirections {
		return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, UpDownSeparator)
	}

	downSQL := splitted[0]
	if idx := strings.Index(downSQL, downMarker); idx != -1 {
		downSQL = downSQL[idx+len(downMarker):]
	}

	return &migrate.Migration{
		Id:   m.Prefix + m.ID,
		Up:   []string{strings.TrimSpace(splitted[1])},
		Down: []string{strings.TrimSpace(downSQL)},
	}, nil
}

func migrateDialect(driver string) string {
	if driver == config.DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}
