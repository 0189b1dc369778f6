package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"time"
)

type ValidateRoutesRequest struct {
	MaxSteps   int
	Policy     domain.StallPolicy
	DepartTime float64

	// Recorded on the report only.
	NetFile    string
	RoutesFile string
}

// driver owns the per-run state of the step loop. It lives for one run.
type driver struct {
	req        ValidateRoutesRequest
	sim        ports.SimulationPort
	tracker    *domain.Tracker
	classifier *domain.Classifier
}

// DriveSimulation injects one probe vehicle per route into an open session
// and steps the simulation until every probe is classified or the step
// budget is exhausted.
//
// Per-route problems (rejected injection, stall, timeout) end up in the
// report. Simulator failures and tracker invariant violations abort the run.
func DriveSimulation(
	ctx context.Context,
	req ValidateRoutesRequest,
	routes []domain.RouteID,
	sim ports.SimulationPort,
) (*domain.ValidationReport, error) {
	if sim == nil {
		return nil, errors.New("drive simulation: simulation must be non-nil")
	}
	if req.MaxSteps < 0 {
		return nil, fmt.Errorf("drive simulation: max steps must be non-negative, got %d", req.MaxSteps)
	}
	if req.Policy.StepThreshold < 1 {
		return nil, fmt.Errorf("drive simulation: stall step threshold must be at least 1, got %d", req.Policy.StepThreshold)
	}

	d := &driver{
		req:        req,
		sim:        sim,
		tracker:    domain.NewTracker(req.Policy),
		classifier: domain.NewClassifier(),
	}

	report := newReport(req)

	if err := d.injectProbes(ctx, routes); err != nil {
		return nil, fmt.Errorf("drive simulation: %w", err)
	}

	step := 0
	for step < req.MaxSteps && !d.tracker.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("drive simulation: step %d: %w", step+1, err)
		}

		if err := d.step(ctx, step+1); err != nil {
			return nil, fmt.Errorf("drive simulation: step %d: %w", step+1, err)
		}
		step++
	}

	// Whatever is still tracked ran out of budget.
	for _, vehicle := range d.tracker.LiveIDs() {
		rec, err := d.tracker.Remove(vehicle)
		if err != nil {
			return nil, fmt.Errorf("drive simulation: %w", err)
		}
		if err := d.classifier.RecordTimeout(rec, step); err != nil {
			return nil, fmt.Errorf("drive simulation: %w", err)
		}
		slog.InfoContext(ctx, "probe timed out", "route", rec.RouteID, "vehicle", rec.VehicleID, "step", step)
	}

	report.StepsRun = step
	report.FinishedAt = time.Now().UTC()
	d.classifier.Fill(report)

	return report, nil
}

func newReport(req ValidateRoutesRequest) *domain.ValidationReport {
	return &domain.ValidationReport{
		NetFile:    req.NetFile,
		RoutesFile: req.RoutesFile,
		StartedAt:  time.Now().UTC(),
	}
}

// injectProbes adds one vehicle per route, one call per route.
// A rejected route is skipped and reported as an injection failure.
func (d *driver) injectProbes(ctx context.Context, routes []domain.RouteID) error {
	for _, route := range routes {
		vehicle := domain.ProbeVehicleID(route)

		// Register first so duplicate route ids never reach the simulator.
		if err := d.tracker.Register(route, vehicle); err != nil {
			return err
		}

		err := d.sim.Inject(ctx, route, vehicle, d.req.DepartTime)
		if err == nil {
			slog.DebugContext(ctx, "probe added", "route", route, "vehicle", vehicle)
			continue
		}

		var injErr *domain.InjectError
		if !errors.As(err, &injErr) {
			return fmt.Errorf("inject vehicle %q on route %q: %w", vehicle, route, err)
		}

		if _, rmErr := d.tracker.Remove(vehicle); rmErr != nil {
			return rmErr
		}

		reason := err.Error()
		if injErr.Err != nil {
			reason = injErr.Err.Error()
		}
		d.classifier.RecordInjectionFailure(route, reason)
		slog.WarnContext(ctx, "probe rejected, skipping route", "route", route, "vehicle", vehicle, "err", reason)
	}

	return nil
}

// step advances the simulation once and classifies every tracked vehicle
// that arrived or stalled during that step.
func (d *driver) step(ctx context.Context, step int) error {
	if err := d.sim.AdvanceStep(ctx); err != nil {
		return fmt.Errorf("advance: %w", err)
	}

	active, err := d.sim.ActiveVehicleIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active vehicles: %w", err)
	}

	// LiveIDs is a snapshot, so removing while iterating is safe.
	for _, vehicle := range d.tracker.LiveIDs() {
		if _, ok := active[vehicle]; !ok {
			rec, err := d.tracker.Remove(vehicle)
			if err != nil {
				return err
			}
			if err := d.classifier.RecordSuccess(rec, step); err != nil {
				return err
			}
			slog.InfoContext(ctx, "probe arrived", "route", rec.RouteID, "vehicle", vehicle, "step", step)
			continue
		}

		speed, err := d.sim.SpeedOf(ctx, vehicle)
		if err != nil {
			return fmt.Errorf("speed of %q: %w", vehicle, err)
		}

		stalled, err := d.tracker.Observe(vehicle, speed)
		if err != nil {
			return err
		}
		if !stalled {
			continue
		}

		if err := d.sim.RemoveVehicle(ctx, vehicle); err != nil {
			return fmt.Errorf("remove stalled vehicle %q: %w", vehicle, err)
		}

		rec, err := d.tracker.Remove(vehicle)
		if err != nil {
			return err
		}
		if err := d.classifier.RecordStalled(rec, d.req.Policy.StepThreshold, step); err != nil {
			return err
		}
		slog.InfoContext(ctx, "probe stalled", "route", rec.RouteID, "vehicle", vehicle, "step", step, "stall_count", rec.StallCount)
	}

	return nil
}
