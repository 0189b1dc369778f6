package api

import (
	"net/http"
	"route-validation-service/internal/api/handlers"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
// A nil repo disables run storage and the /runs endpoints.
func NewRouter(
	repo ports.ReportRepository,
	source ports.RouteSource,
	opener ports.SimulationOpener,
	defaults services.ValidateRoutesRequest,
) http.Handler {
	mux := http.NewServeMux()

	runHandler := &handlers.RunHandler{Repo: repo}
	validationHandler := &handlers.ValidationHandler{
		Source:   source,
		Opener:   opener,
		Repo:     repo,
		Defaults: defaults,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/runs", runHandler.List)
	mux.HandleFunc("/runs/{id}", runHandler.Get)
	mux.HandleFunc("/validations", validationHandler.Run)

	return loggingMiddleware(mux)
}
