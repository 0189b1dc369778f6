package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"strconv"
	"strings"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// RunHandler exposes read-only access to stored validation runs.
type RunHandler struct {
	Repo ports.ReportRepository
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}

	limit := defaultRunsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "list runs failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListRunsResponse{Runs: make([]dto.RunSummaryResponse, 0, len(runs))}
	for _, run := range runs {
		res.Runs = append(res.Runs, dto.FromRunSummary(run))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}

	runID := strings.TrimSpace(r.PathValue("id"))
	if runID == "" {
		writeError(w, r, http.StatusBadRequest, "run id is required")
		return
	}

	report, err := h.Repo.GetReport(r.Context(), runID)
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get report failed", "run_id", runID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.FromReport(report))
}
