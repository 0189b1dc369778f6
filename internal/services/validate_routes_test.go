package services

import (
	"context"
	"errors"
	"route-validation-service/internal/adapters/routes"
	"route-validation-service/internal/adapters/simulation"
	"route-validation-service/internal/domain"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(maxSteps int) ValidateRoutesRequest {
	return ValidateRoutesRequest{
		MaxSteps: maxSteps,
		Policy:   domain.DefaultStallPolicy(),
	}
}

func repeat(speed float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = speed
	}
	return out
}

func run(t *testing.T, req ValidateRoutesRequest, ids []domain.RouteID, scripts map[domain.RouteID]simulation.ScriptedVehicle) (*domain.ValidationReport, *simulation.ScriptedSimulation) {
	t.Helper()

	sim := simulation.NewScriptedSimulation(scripts)
	opener := &simulation.ScriptedOpener{Sim: sim}

	report, err := ValidateRoutes(context.Background(), req, &routes.StaticRouteSource{Routes: ids}, opener)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sim.Closed {
		t.Fatalf("session was not closed")
	}
	return report, sim
}

func TestValidateRoutesStalledAndArrived(t *testing.T) {
	report, sim := run(t, request(1000), []domain.RouteID{"R1", "R2"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {Speeds: []float64{0}},
		"R2": {Speeds: []float64{8.3}, ArriveAfter: 3},
	})

	want := []domain.RouteOutcome{
		{RouteID: "R2", VehicleID: "veh_R2", Kind: domain.OutcomeSuccess, Step: 3},
		{
			RouteID:   "R1",
			VehicleID: "veh_R1",
			Kind:      domain.OutcomeStalled,
			Reason:    "Vehicle veh_R1 stalled for 50 consecutive steps.",
			Step:      50,
		},
	}
	if diff := cmp.Diff(want, report.Outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[domain.RouteID]string{"R1": "Vehicle veh_R1 stalled for 50 consecutive steps."}, report.ErrorRoutes)
	assert.Equal(t, []domain.RouteID{"R2"}, report.SuccessfulRoutes)
	assert.Empty(t, report.InjectionFailures)
	assert.Equal(t, 50, report.StepsRun)
	assert.Equal(t, []domain.VehicleID{"veh_R1"}, sim.Removed)
	assert.NotEmpty(t, report.RunID)
	assert.True(t, report.HasErrors())
}

func TestValidateRoutesTimeoutAtMaxSteps(t *testing.T) {
	report, sim := run(t, request(1000), []domain.RouteID{"R1"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {Speeds: []float64{5.0}},
	})

	o, ok := findOutcome(report, "R1")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeTimeout, o.Kind)
	assert.Equal(t, 1000, o.Step)
	assert.Equal(t, domain.TimeoutReason, report.ErrorRoutes["R1"])
	assert.Equal(t, 1000, report.StepsRun)
	assert.Equal(t, 1000, sim.Steps())
	assert.Empty(t, sim.Removed, "timed out vehicles stay in the simulator")
}

func TestValidateRoutesEmptySource(t *testing.T) {
	opener := &simulation.ScriptedOpener{}

	report, err := ValidateRoutes(context.Background(), request(1000), &routes.StaticRouteSource{}, opener)
	require.NoError(t, err)

	assert.Equal(t, 0, opener.Opens, "no session for an empty route list")
	assert.Empty(t, report.ErrorRoutes)
	assert.Empty(t, report.SuccessfulRoutes)
	assert.Empty(t, report.Outcomes)
	assert.False(t, report.HasErrors())
}

func TestValidateRoutesSlowThenFastDoesNotStall(t *testing.T) {
	speeds := append(repeat(0.05, domain.DefaultStallStepThreshold-1), 3.0)

	report, _ := run(t, request(1000), []domain.RouteID{"R1"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {Speeds: speeds, ArriveAfter: 120},
	})

	o, ok := findOutcome(report, "R1")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeSuccess, o.Kind)
	assert.Equal(t, 120, o.Step)
}

func TestValidateRoutesFastSampleResetsStallCount(t *testing.T) {
	// 40 slow, 1 fast, 40 slow: never 50 in a row.
	speeds := append(repeat(0, 40), 0.1)
	speeds = append(speeds, repeat(0, 40)...)
	speeds = append(speeds, 2.0)

	report, _ := run(t, request(200), []domain.RouteID{"R1"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {Speeds: speeds, ArriveAfter: 90},
	})

	assert.Equal(t, []domain.RouteID{"R1"}, report.SuccessfulRoutes)
}

func TestValidateRoutesImmediateArrival(t *testing.T) {
	report, _ := run(t, request(1000), []domain.RouteID{"R1"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {ArriveAfter: 1},
	})

	o, ok := findOutcome(report, "R1")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeSuccess, o.Kind)
	assert.Equal(t, 1, o.Step)
	assert.Equal(t, 1, report.StepsRun)
}

func TestValidateRoutesInjectionFailureReportedSeparately(t *testing.T) {
	report, sim := run(t, request(1000), []domain.RouteID{"R1", "BAD", "GONE"}, map[domain.RouteID]simulation.ScriptedVehicle{
		"R1":  {ArriveAfter: 2},
		"BAD": {Reject: "Invalid route 'BAD'"},
	})

	assert.Equal(t, []domain.RouteID{"R1"}, report.SuccessfulRoutes)
	assert.Empty(t, report.ErrorRoutes)
	assert.Equal(t, "Invalid route 'BAD'", report.InjectionFailures["BAD"])
	assert.Contains(t, report.InjectionFailures, domain.RouteID("GONE"))
	assert.Equal(t, []domain.VehicleID{"veh_R1"}, sim.Injected)
	assert.True(t, report.HasErrors())
}

func TestValidateRoutesPartition(t *testing.T) {
	scripts := map[domain.RouteID]simulation.ScriptedVehicle{
		"a": {Speeds: []float64{10}, ArriveAfter: 5},
		"b": {Speeds: []float64{0}},
		"c": {Speeds: []float64{1}},
		"d": {ArriveAfter: 1},
		"e": {Speeds: append(repeat(0, 30), 4), ArriveAfter: 70},
		"f": {Reject: "no"},
		"g": {Speeds: []float64{0, 0, 0, 9}, ArriveAfter: 55},
	}
	ids := []domain.RouteID{"a", "b", "c", "d", "e", "f", "g"}

	report, _ := run(t, request(60), ids, scripts)

	seen := make(map[domain.RouteID]int)
	for route := range report.ErrorRoutes {
		seen[route]++
	}
	for _, route := range report.SuccessfulRoutes {
		seen[route]++
	}
	for route := range report.InjectionFailures {
		seen[route]++
	}

	require.Len(t, seen, len(ids))
	for route, n := range seen {
		assert.Equal(t, 1, n, "route %s classified %d times", route, n)
	}
	assert.Len(t, report.Outcomes, len(ids)-len(report.InjectionFailures))
	assert.Equal(t, domain.TimeoutReason, report.ErrorRoutes["c"])
	assert.Contains(t, report.ErrorRoutes["b"], "stalled for 50")
}

func TestValidateRoutesRouteSourceError(t *testing.T) {
	opener := &simulation.ScriptedOpener{}
	src := &routes.StaticRouteSource{Err: errors.New("permission denied")}

	_, err := ValidateRoutes(context.Background(), request(10), src, opener)
	assert.ErrorIs(t, err, domain.ErrRouteSourceUnreadable)
	assert.Equal(t, 0, opener.Opens)
}

func TestValidateRoutesSessionStartError(t *testing.T) {
	opener := &simulation.ScriptedOpener{Err: errors.New("connection refused")}
	src := &routes.StaticRouteSource{Routes: []domain.RouteID{"R1"}}

	_, err := ValidateRoutes(context.Background(), request(10), src, opener)
	assert.ErrorIs(t, err, domain.ErrSessionStart)
}

func TestValidateRoutesClosesSessionOnSimulatorFailure(t *testing.T) {
	sim := simulation.NewScriptedSimulation(map[domain.RouteID]simulation.ScriptedVehicle{"R1": {Speeds: []float64{3}}})
	sim.FailAdvanceAt = 4
	src := &routes.StaticRouteSource{Routes: []domain.RouteID{"R1"}}

	_, err := ValidateRoutes(context.Background(), request(10), src, &simulation.ScriptedOpener{Sim: sim})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 4")
	assert.True(t, sim.Closed)
}

func TestValidateRoutesDuplicateRouteIsFatal(t *testing.T) {
	sim := simulation.NewScriptedSimulation(map[domain.RouteID]simulation.ScriptedVehicle{"R1": {}})
	src := &routes.StaticRouteSource{Routes: []domain.RouteID{"R1", "R1"}}

	_, err := ValidateRoutes(context.Background(), request(10), src, &simulation.ScriptedOpener{Sim: sim})
	assert.ErrorIs(t, err, domain.ErrDuplicateVehicle)
	assert.Len(t, sim.Injected, 1)
	assert.True(t, sim.Closed)
}

func TestValidateRoutesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := simulation.NewScriptedSimulation(map[domain.RouteID]simulation.ScriptedVehicle{"R1": {}})
	src := &routes.StaticRouteSource{Routes: []domain.RouteID{"R1"}}

	_, err := ValidateRoutes(ctx, request(10), src, &simulation.ScriptedOpener{Sim: sim})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sim.Closed)
}

func TestDriveSimulationRejectsBadRequest(t *testing.T) {
	sim := simulation.NewScriptedSimulation(nil)

	_, err := DriveSimulation(context.Background(), request(-1), nil, sim)
	assert.Error(t, err)

	req := request(10)
	req.Policy.StepThreshold = 0
	_, err = DriveSimulation(context.Background(), req, nil, sim)
	assert.Error(t, err)
}

func TestDriveSimulationZeroStepsTimesOutEverything(t *testing.T) {
	sim := simulation.NewScriptedSimulation(map[domain.RouteID]simulation.ScriptedVehicle{"R1": {ArriveAfter: 1}})

	report, err := DriveSimulation(context.Background(), request(0), []domain.RouteID{"R1"}, sim)
	require.NoError(t, err)
	assert.Equal(t, domain.TimeoutReason, report.ErrorRoutes["R1"])
	assert.Equal(t, 0, sim.Steps())
}

func findOutcome(r *domain.ValidationReport, route domain.RouteID) (domain.RouteOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.RouteID == route {
			return o, true
		}
	}
	return domain.RouteOutcome{}, false
}
