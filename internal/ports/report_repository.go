package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Port: persistence for finished validation runs.
type ReportRepository interface {
	SaveReport(ctx context.Context, report *domain.ValidationReport) error
	// Return run summaries, newest first. limit <= 0 returns every run.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	// Return a stored report or domain.ErrRunNotFound.
	GetReport(ctx context.Context, runID string) (*domain.ValidationReport, error)
}
