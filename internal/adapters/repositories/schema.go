package repositories

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"route-validation-service/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// The same migration files run on SQLite and PostgreSQL.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// Bring the report schema up to date. driver is config.StorageSqlite or
// config.StoragePostgres.
func InitSchema(db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	var (
		target database.Driver
		err    error
	)
	switch driver {
	case config.StorageSqlite:
		target, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	case config.StoragePostgres:
		target, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return fmt.Errorf("init schema: unsupported driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("init schema: %s migration driver: %w", driver, err)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("init schema: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	// m is not closed: that would close db.
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("init schema: migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("init schema: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("init schema: version %d is dirty", version)
	}

	return nil
}

// migrateLogger forwards migrate's messages to slog.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Debug("migrate", "msg", fmt.Sprintf(format, v...))
}

func (migrateLogger) Verbose() bool { return false }
