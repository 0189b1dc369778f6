package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"

	"github.com/google/uuid"
)

// ValidateRoutes runs one complete validation: it reads the routes, opens a
// simulation session, drives it, and closes the session on every exit path.
//
// An empty route list is not an error: the report is empty and no session
// is opened.
func ValidateRoutes(
	ctx context.Context,
	req ValidateRoutesRequest,
	source ports.RouteSource,
	opener ports.SimulationOpener,
) (_ *domain.ValidationReport, err error) {
	runID := uuid.NewString()
	ctx = obs.WithRunID(ctx, runID)
	defer obs.Time(ctx, "validate.routes")(&err)

	routes, err := source.ListRoutes(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrRouteSourceUnreadable) {
			err = fmt.Errorf("%w: %w", domain.ErrRouteSourceUnreadable, err)
		}
		return nil, fmt.Errorf("validate routes: %w", err)
	}

	if len(routes) == 0 {
		slog.InfoContext(ctx, "no routes to validate", "run_id", runID, "routes_file", req.RoutesFile)
		report := newReport(req)
		report.RunID = runID
		report.FinishedAt = report.StartedAt
		domain.NewClassifier().Fill(report)
		return report, nil
	}

	slog.InfoContext(ctx, "validating routes", "run_id", runID, "routes", len(routes), "max_steps", req.MaxSteps)

	sim, err := opener.Open(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionStart) {
			err = fmt.Errorf("%w: %w", domain.ErrSessionStart, err)
		}
		return nil, fmt.Errorf("validate routes: %w", err)
	}
	defer func() {
		if cerr := sim.Close(); cerr != nil {
			slog.WarnContext(ctx, "close simulation session failed", "run_id", runID, "err", cerr)
		}
	}()

	report, err := DriveSimulation(ctx, req, routes, sim)
	if err != nil {
		return nil, fmt.Errorf("validate routes: %w", err)
	}
	report.RunID = runID

	slog.InfoContext(ctx, "validation finished",
		"run_id", runID,
		"steps", report.StepsRun,
		"succeeded", len(report.SuccessfulRoutes),
		"failed", len(report.ErrorRoutes),
		"rejected", len(report.InjectionFailures),
	)

	return report, nil
}
