package repositories

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/db"
	"route-validation-service/internal/ports"
)

// Open connects to the configured report store and makes sure its schema
// exists. Driver "none" yields a nil repository and a no-op close.
func Open(cfg config.StorageConfig) (ports.ReportRepository, func() error, error) {
	var (
		conn   *sql.DB
		repo   *SQLReportRepository
		driver = cfg.Driver
		err    error
	)

	switch driver {
	case config.StorageNone:
		return nil, func() error { return nil }, nil
	case config.StoragePostgres:
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo = NewSQLReportRepository(conn)
	case config.StorageSqlite, "":
		driver = config.StorageSqlite
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("open report store: create %q: %w", dir, err)
			}
		}
		conn, err = db.OpenSqlite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		repo = NewSqliteReportRepository(conn)
	default:
		return nil, nil, fmt.Errorf("open report store: unknown driver %q", cfg.Driver)
	}

	if err := InitSchema(conn, driver); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open report store: %w", err)
	}

	return repo, conn.Close, nil
}
