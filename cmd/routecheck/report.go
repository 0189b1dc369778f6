package main

import (
	"encoding/json"
	"fmt"
	"io"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"
	"sort"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes the human-readable result of a run. Broken routes are
// listed in the order they were classified.
func printReport(w io.Writer, r *domain.ValidationReport) {
	fmt.Fprintln(w, "\n--- Route Check Results ---")

	if len(r.ErrorRoutes) > 0 {
		fmt.Fprintln(w, "Routes with errors:")
		for _, o := range r.Outcomes {
			if o.Kind.IsError() {
				fmt.Fprintf(w, " - %s: %s\n", o.RouteID, o.Reason)
			}
		}
	} else {
		fmt.Fprintln(w, "No route errors found.")
	}

	if len(r.SuccessfulRoutes) > 0 {
		fmt.Fprintln(w, "\nSuccessful Routes:")
		for _, route := range r.SuccessfulRoutes {
			fmt.Fprintf(w, " - %s\n", route)
		}
	}

	if len(r.InjectionFailures) > 0 {
		fmt.Fprintln(w, "\nRoutes that could not be injected:")
		routes := make([]domain.RouteID, 0, len(r.InjectionFailures))
		for route := range r.InjectionFailures {
			routes = append(routes, route)
		}
		sort.Slice(routes, func(i, j int) bool { return routes[i] < routes[j] })
		for _, route := range routes {
			fmt.Fprintf(w, " - %s: %s\n", route, r.InjectionFailures[route])
		}
	}

	if r.RunID != "" {
		fmt.Fprintf(w, "\nRun %s: %d steps, %d ok, %d failed, %d not injected\n",
			r.RunID, r.StepsRun, len(r.SuccessfulRoutes), len(r.ErrorRoutes), len(r.InjectionFailures))
	}
}

func outputReport(w io.Writer, r *domain.ValidationReport, jsonOut bool) error {
	if jsonOut {
		return writeJSON(w, dto.FromReport(r))
	}
	printReport(w, r)
	return nil
}
