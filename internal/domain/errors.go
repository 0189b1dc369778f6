package domain

import (
	"errors"
	"fmt"
)

var (
	// Invariant violations inside the tracker and classifier. They indicate a
	// programming error and abort the run.
	ErrDuplicateVehicle  = errors.New("duplicate vehicle")
	ErrUnknownVehicle    = errors.New("unknown vehicle")
	ErrAlreadyClassified = errors.New("route already classified")

	// Infrastructure failures. They abort the run before any route is processed.
	ErrRouteSourceUnreadable = errors.New("route source unreadable")
	ErrSessionStart          = errors.New("simulation session start failed")

	ErrRunNotFound = errors.New("validation run not found")
)

// InjectError reports that the simulator refused to create the probe vehicle
// for a route. It is recoverable: the route is skipped and the run continues.
type InjectError struct {
	RouteID   RouteID
	VehicleID VehicleID
	Err       error
}

func (e *InjectError) Error() string {
	return fmt.Sprintf("inject vehicle %s on route %s: %v", e.VehicleID, e.RouteID, e.Err)
}

func (e *InjectError) Unwrap() error { return e.Err }
