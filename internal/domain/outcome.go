package domain

import "fmt"

type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeStalled         OutcomeKind = "stalled"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeInjectionFailed OutcomeKind = "injection_failed"
)

// IsError reports whether the outcome marks the route as broken.
func (k OutcomeKind) IsError() bool {
	return k == OutcomeStalled || k == OutcomeTimeout
}

// Terminal classification of one route.
// Step is the simulation step at which the outcome was decided.
type RouteOutcome struct {
	RouteID   RouteID
	VehicleID VehicleID
	Kind      OutcomeKind
	Reason    string
	Step      int
}

func StalledReason(vehicle VehicleID, threshold int) string {
	return fmt.Sprintf("Vehicle %s stalled for %d consecutive steps.", vehicle, threshold)
}

const TimeoutReason = "Vehicle did not complete the route within the simulation time."
