package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
	"sync"
)

const maxStepsLimit = 1_000_000

// ValidationHandler runs validations against the configured network.
// Only one run is in flight at a time; each run owns a simulator process.
type ValidationHandler struct {
	Source   ports.RouteSource
	Opener   ports.SimulationOpener
	Repo     ports.ReportRepository // nil disables storage
	Defaults services.ValidateRoutesRequest

	running sync.Mutex
}

// Run validates every route, stores the report and returns it.
func (h *ValidationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.ValidationRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	// An empty body runs with the defaults.
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	svcReq := h.Defaults

	if req.MaxSteps != 0 {
		svcReq.MaxSteps = req.MaxSteps
	}
	if svcReq.MaxSteps < 1 || svcReq.MaxSteps > maxStepsLimit {
		writeError(w, r, http.StatusBadRequest, "max_steps must be between 1 and 1000000")
		return
	}

	if req.StallStepThreshold != 0 {
		svcReq.Policy.StepThreshold = req.StallStepThreshold
	}
	if svcReq.Policy.StepThreshold < 1 {
		writeError(w, r, http.StatusBadRequest, "stall_step_threshold must be at least 1")
		return
	}

	if req.StallSpeedThreshold != 0 {
		svcReq.Policy.SpeedThreshold = req.StallSpeedThreshold
	}
	if svcReq.Policy.SpeedThreshold <= 0 {
		writeError(w, r, http.StatusBadRequest, "stall_speed_threshold must be positive")
		return
	}

	if !h.running.TryLock() {
		writeError(w, r, http.StatusConflict, "a validation is already running")
		return
	}
	defer h.running.Unlock()

	report, err := services.ValidateRoutes(r.Context(), svcReq, h.Source, h.Opener)
	switch {
	case errors.Is(err, domain.ErrSessionStart):
		slog.ErrorContext(r.Context(), "validation failed", "err", err)
		writeError(w, r, http.StatusServiceUnavailable, "simulator unavailable")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "validation failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.Repo != nil {
		if err := h.Repo.SaveReport(r.Context(), report); err != nil {
			slog.ErrorContext(r.Context(), "store report failed", "run_id", report.RunID, "err", err)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	writeJSON(w, r, http.StatusOK, dto.FromReport(report))
}
