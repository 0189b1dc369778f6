package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Stored timestamps are UTC with a fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLReportRepository stores validation reports in a SQL database.
// It implements ports.ReportRepository for both SQLite and PostgreSQL.
type SQLReportRepository struct {
	DB *sql.DB

	// positional placeholder for the n-th argument, 1-based
	placeholder func(n int) string
}

// PostgreSQL-flavoured repository ($1, $2, ...).
func NewSQLReportRepository(db *sql.DB) *SQLReportRepository {
	return &SQLReportRepository{
		DB:          db,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
}

// SQLite-flavoured repository (?).
func NewSqliteReportRepository(db *sql.DB) *SQLReportRepository {
	return &SQLReportRepository{
		DB:          db,
		placeholder: func(int) string { return "?" },
	}
}

// bind replaces each '?' in q with the dialect's placeholder.
func (s *SQLReportRepository) bind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store one report with all its route outcomes.
func (s *SQLReportRepository) SaveReport(ctx context.Context, report *domain.ValidationReport) (err error) {
	defer obs.Time(ctx, "report.repo.SaveReport")(&err)

	if s.DB == nil {
		return errors.New("report repository: db is nil")
	}
	if report == nil || report.RunID == "" {
		return errors.New("save report: run id must not be empty")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save report: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary := report.Summary()
	_, err = tx.ExecContext(ctx, s.bind(`
	INSERT INTO validation_runs (
		run_id,
		net_file,
		routes_file,
		started_at,
		finished_at,
		steps_run,
		success_count,
		error_count,
		injection_failures
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`),
		summary.RunID,
		summary.NetFile,
		summary.RoutesFile,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.StepsRun,
		summary.SuccessCount,
		summary.ErrorCount,
		summary.InjectionFailures,
	)
	if err != nil {
		return fmt.Errorf("save report run_id=%q: insert run: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.bind(`
	INSERT INTO route_outcomes (run_id, seq, route_id, vehicle_id, kind, reason, step)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`))
	if err != nil {
		return fmt.Errorf("save report: db prepare: %w", err)
	}
	defer stmt.Close()

	for i, o := range storedOutcomes(report) {
		if _, err := stmt.ExecContext(ctx, report.RunID, i, string(o.RouteID), string(o.VehicleID), string(o.Kind), o.Reason, o.Step); err != nil {
			return fmt.Errorf("save report: insert outcome route=%q: %w", o.RouteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: commit: %w", err)
	}

	return nil
}

// storedOutcomes lists classified outcomes in order, then injection
// failures sorted by route.
func storedOutcomes(r *domain.ValidationReport) []domain.RouteOutcome {
	out := make([]domain.RouteOutcome, 0, len(r.Outcomes)+len(r.InjectionFailures))
	out = append(out, r.Outcomes...)

	failed := make([]domain.RouteID, 0, len(r.InjectionFailures))
	for route := range r.InjectionFailures {
		failed = append(failed, route)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	for _, route := range failed {
		out = append(out, domain.RouteOutcome{
			RouteID:   route,
			VehicleID: domain.ProbeVehicleID(route),
			Kind:      domain.OutcomeInjectionFailed,
			Reason:    r.InjectionFailures[route],
		})
	}
	return out
}

// Return stored runs, newest first. A non-positive limit returns all runs.
func (s *SQLReportRepository) ListRuns(ctx context.Context, limit int) (_ []domain.RunSummary, err error) {
	defer obs.Time(ctx, "report.repo.ListRuns")(&err)

	if s.DB == nil {
		return nil, errors.New("report repository: db is nil")
	}

	q := `
	SELECT
		run_id,
		net_file,
		routes_file,
		started_at,
		finished_at,
		steps_run,
		success_count,
		error_count,
		injection_failures
	FROM validation_runs
	ORDER BY started_at DESC, run_id
	`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.bind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: query validation_runs table: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.RunSummary, 0, 16)
	for rows.Next() {
		run, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: row iteration: %w", err)
	}

	return runs, nil
}

// Return one stored report, or an error wrapping domain.ErrRunNotFound.
func (s *SQLReportRepository) GetReport(ctx context.Context, runID string) (_ *domain.ValidationReport, err error) {
	defer obs.Time(ctx, "report.repo.GetReport")(&err)

	if s.DB == nil {
		return nil, errors.New("report repository: db is nil")
	}

	row := s.DB.QueryRowContext(ctx, s.bind(`
	SELECT
		run_id,
		net_file,
		routes_file,
		started_at,
		finished_at,
		steps_run,
		success_count,
		error_count,
		injection_failures
	FROM validation_runs
	WHERE run_id = ?;
	`), runID)

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get report %q: %w", runID, domain.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %q: %w", runID, err)
	}

	rows, err := s.DB.QueryContext(ctx, s.bind(`
	SELECT route_id, vehicle_id, kind, reason, step
	FROM route_outcomes
	WHERE run_id = ?
	ORDER BY seq;
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("get report %q: query route_outcomes table: %w", runID, err)
	}
	defer rows.Close()

	report := &domain.ValidationReport{
		RunID:             summary.RunID,
		NetFile:           summary.NetFile,
		RoutesFile:        summary.RoutesFile,
		StartedAt:         summary.StartedAt,
		FinishedAt:        summary.FinishedAt,
		StepsRun:          summary.StepsRun,
		ErrorRoutes:       map[domain.RouteID]string{},
		SuccessfulRoutes:  []domain.RouteID{},
		InjectionFailures: map[domain.RouteID]string{},
		Outcomes:          []domain.RouteOutcome{},
	}

	for rows.Next() {
		var route, vehicle, kind, reason string
		var step int
		if err := rows.Scan(&route, &vehicle, &kind, &reason, &step); err != nil {
			return nil, fmt.Errorf("get report %q: scan outcome: %w", runID, err)
		}

		o := domain.RouteOutcome{
			RouteID:   domain.RouteID(route),
			VehicleID: domain.VehicleID(vehicle),
			Kind:      domain.OutcomeKind(kind),
			Reason:    reason,
			Step:      step,
		}
		switch o.Kind {
		case domain.OutcomeInjectionFailed:
			report.InjectionFailures[o.RouteID] = o.Reason
			continue
		case domain.OutcomeSuccess:
			report.SuccessfulRoutes = append(report.SuccessfulRoutes, o.RouteID)
		default:
			report.ErrorRoutes[o.RouteID] = o.Reason
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get report %q: row iteration: %w", runID, err)
	}

	return report, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (domain.RunSummary, error) {
	var run domain.RunSummary
	var started, finished string
	err := sc.Scan(
		&run.RunID,
		&run.NetFile,
		&run.RoutesFile,
		&started,
		&finished,
		&run.StepsRun,
		&run.SuccessCount,
		&run.ErrorCount,
		&run.InjectionFailures,
	)
	if err != nil {
		return domain.RunSummary{}, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return domain.RunSummary{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return domain.RunSummary{}, fmt.Errorf("parse finished_at %q: %w", finished, err)
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
