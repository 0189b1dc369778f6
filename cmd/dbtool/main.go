package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/db"
	"route-validation-service/internal/platform/logging"
	"route-validation-service/internal/ports"
	"strings"
)

// dbtool prepares a PostgreSQL report store and optionally imports reports
// written by `routecheck run --json`.
func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, os.Stderr)

	databaseURL := config.Get("DATABASE_URL", cfg.Storage.DatabaseURL)
	if strings.TrimSpace(databaseURL) == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := initAndImport(context.Background(), conn, flag.Args()); err != nil {
		slog.Error("dbtool failed", "err", err)
		conn.Close()
		os.Exit(1)
	}
}

func initAndImport(ctx context.Context, conn *sql.DB, reportPaths []string) error {
	slog.Info("initializing database schema")
	if err := repositories.InitSchema(conn, config.StoragePostgres); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	slog.Info("schema ready")

	repo := repositories.NewSQLReportRepository(conn)
	for _, path := range reportPaths {
		runID, err := importReport(ctx, repo, path)
		if err != nil {
			return err
		}
		slog.Info("report imported", "file", path, "run_id", runID)
	}

	return nil
}

// importReport loads one JSON report and stores it.
func importReport(ctx context.Context, repo ports.ReportRepository, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("import report: read %q: %w", path, err)
	}

	var res dto.ReportResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("import report: parse %q: %w", path, err)
	}
	if strings.TrimSpace(res.RunID) == "" {
		return "", fmt.Errorf("import report: %q has no run_id", path)
	}

	if err := repo.SaveReport(ctx, res.ToDomain()); err != nil {
		return "", fmt.Errorf("import report %q: %w", path, err)
	}
	return res.RunID, nil
}
