package dto

import (
	"route-validation-service/internal/domain"
	"time"
)

type RunSummaryResponse struct {
	RunID             string    `json:"run_id"`
	NetFile           string    `json:"net_file"`
	RoutesFile        string    `json:"routes_file"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	StepsRun          int       `json:"steps_run"`
	SuccessCount      int       `json:"success_count"`
	ErrorCount        int       `json:"error_count"`
	InjectionFailures int       `json:"injection_failures"`
}

type ListRunsResponse struct {
	Runs []RunSummaryResponse `json:"runs"`
}

type OutcomeResponse struct {
	RouteID   string `json:"route_id"`
	VehicleID string `json:"vehicle_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	Step      int    `json:"step"`
}

// ReportResponse is the JSON form of a validation report. The CLI writes it
// with --json and dbtool imports it back.
type ReportResponse struct {
	RunID             string            `json:"run_id"`
	NetFile           string            `json:"net_file"`
	RoutesFile        string            `json:"routes_file"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	StepsRun          int               `json:"steps_run"`
	ErrorRoutes       map[string]string `json:"error_routes"`
	SuccessfulRoutes  []string          `json:"successful_routes"`
	InjectionFailures map[string]string `json:"injection_failures"`
	Outcomes          []OutcomeResponse `json:"outcomes"`
}

func FromRunSummary(s domain.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		RunID:             s.RunID,
		NetFile:           s.NetFile,
		RoutesFile:        s.RoutesFile,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
		StepsRun:          s.StepsRun,
		SuccessCount:      s.SuccessCount,
		ErrorCount:        s.ErrorCount,
		InjectionFailures: s.InjectionFailures,
	}
}

func FromReport(r *domain.ValidationReport) ReportResponse {
	res := ReportResponse{
		RunID:             r.RunID,
		NetFile:           r.NetFile,
		RoutesFile:        r.RoutesFile,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		StepsRun:          r.StepsRun,
		ErrorRoutes:       make(map[string]string, len(r.ErrorRoutes)),
		SuccessfulRoutes:  make([]string, 0, len(r.SuccessfulRoutes)),
		InjectionFailures: make(map[string]string, len(r.InjectionFailures)),
		Outcomes:          make([]OutcomeResponse, 0, len(r.Outcomes)),
	}

	for route, reason := range r.ErrorRoutes {
		res.ErrorRoutes[string(route)] = reason
	}
	for _, route := range r.SuccessfulRoutes {
		res.SuccessfulRoutes = append(res.SuccessfulRoutes, string(route))
	}
	for route, reason := range r.InjectionFailures {
		res.InjectionFailures[string(route)] = reason
	}
	for _, o := range r.Outcomes {
		res.Outcomes = append(res.Outcomes, OutcomeResponse{
			RouteID:   string(o.RouteID),
			VehicleID: string(o.VehicleID),
			Kind:      string(o.Kind),
			Reason:    o.Reason,
			Step:      o.Step,
		})
	}

	return res
}

// ToDomain converts a decoded report back into the domain form.
func (r ReportResponse) ToDomain() *domain.ValidationReport {
	out := &domain.ValidationReport{
		RunID:             r.RunID,
		NetFile:           r.NetFile,
		RoutesFile:        r.RoutesFile,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		StepsRun:          r.StepsRun,
		ErrorRoutes:       make(map[domain.RouteID]string, len(r.ErrorRoutes)),
		SuccessfulRoutes:  make([]domain.RouteID, 0, len(r.SuccessfulRoutes)),
		InjectionFailures: make(map[domain.RouteID]string, len(r.InjectionFailures)),
		Outcomes:          make([]domain.RouteOutcome, 0, len(r.Outcomes)),
	}

	for route, reason := range r.ErrorRoutes {
		out.ErrorRoutes[domain.RouteID(route)] = reason
	}
	for _, route := range r.SuccessfulRoutes {
		out.SuccessfulRoutes = append(out.SuccessfulRoutes, domain.RouteID(route))
	}
	for route, reason := range r.InjectionFailures {
		out.InjectionFailures[domain.RouteID(route)] = reason
	}
	for _, o := range r.Outcomes {
		out.Outcomes = append(out.Outcomes, domain.RouteOutcome{
			RouteID:   domain.RouteID(o.RouteID),
			VehicleID: domain.VehicleID(o.VehicleID),
			Kind:      domain.OutcomeKind(o.Kind),
			Reason:    o.Reason,
			Step:      o.Step,
		})
	}

	return out
}
