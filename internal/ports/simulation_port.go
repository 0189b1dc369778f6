package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Contract for driving a running traffic simulation one step at a time.
// Every call is a blocking request/response against a session owned
// exclusively by the caller.
type SimulationPort interface {
	// Create a vehicle on a route. A refusal is returned as *domain.InjectError.
	Inject(ctx context.Context, route domain.RouteID, vehicle domain.VehicleID, departTime float64) error
	// Advance simulated time by exactly one step.
	AdvanceStep(ctx context.Context) error
	// Return the ids of every vehicle currently in the simulation.
	ActiveVehicleIDs(ctx context.Context) (map[domain.VehicleID]struct{}, error)
	// Return the current speed of a vehicle.
	SpeedOf(ctx context.Context, vehicle domain.VehicleID) (float64, error)
	// Take a vehicle out of the simulation.
	RemoveVehicle(ctx context.Context, vehicle domain.VehicleID) error
	// Terminate the session and release its resources.
	Close() error
}

// Port: acquires a simulation session for a single validation run.
// Failures are reported wrapping domain.ErrSessionStart.
type SimulationOpener interface {
	Open(ctx context.Context) (SimulationPort, error)
}
