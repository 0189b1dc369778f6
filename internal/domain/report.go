package domain

import "time"

// Result of one validation run.
//
// ErrorRoutes and SuccessfulRoutes partition the routes whose probe vehicle
// was injected. Outcomes and SuccessfulRoutes keep classification order.
type ValidationReport struct {
	RunID             string
	NetFile           string
	RoutesFile        string
	StartedAt         time.Time
	FinishedAt        time.Time
	StepsRun          int
	ErrorRoutes       map[RouteID]string
	SuccessfulRoutes  []RouteID
	InjectionFailures map[RouteID]string
	Outcomes          []RouteOutcome
}

// HasErrors reports whether any route failed validation or could not be injected.
func (r *ValidationReport) HasErrors() bool {
	return len(r.ErrorRoutes) > 0 || len(r.InjectionFailures) > 0
}

func (r *ValidationReport) Summary() RunSummary {
	return RunSummary{
		RunID:             r.RunID,
		NetFile:           r.NetFile,
		RoutesFile:        r.RoutesFile,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		StepsRun:          r.StepsRun,
		SuccessCount:      len(r.SuccessfulRoutes),
		ErrorCount:        len(r.ErrorRoutes),
		InjectionFailures: len(r.InjectionFailures),
	}
}

// Listing view of a stored validation run.
type RunSummary struct {
	RunID             string
	NetFile           string
	RoutesFile        string
	StartedAt         time.Time
	FinishedAt        time.Time
	StepsRun          int
	SuccessCount      int
	ErrorCount        int
	InjectionFailures int
}
