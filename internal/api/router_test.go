package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"route-validation-service/internal/adapters/routes"
	"route-validation-service/internal/adapters/simulation"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	reports []*domain.ValidationReport
}

func (m *memRepo) SaveReport(ctx context.Context, r *domain.ValidationReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.RunSummary{}
	for i := len(m.reports) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.reports[i].Summary())
	}
	return out, nil
}

func (m *memRepo) GetReport(ctx context.Context, runID string) (*domain.ValidationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reports {
		if r.RunID == runID {
			return r, nil
		}
	}
	return nil, domain.ErrRunNotFound
}

// blockingOpener parks Open until release is closed.
type blockingOpener struct {
	entered chan struct{}
	release chan struct{}
	sim     ports.SimulationPort
}

func (o *blockingOpener) Open(ctx context.Context) (ports.SimulationPort, error) {
	close(o.entered)
	<-o.release
	return o.sim, nil
}

func defaults() services.ValidateRoutesRequest {
	return services.ValidateRoutesRequest{
		MaxSteps: 100,
		Policy:   domain.DefaultStallPolicy(),
	}
}

func newTestRouter(repo ports.ReportRepository, opener ports.SimulationOpener) http.Handler {
	src := &routes.StaticRouteSource{Routes: []domain.RouteID{"R1", "R2"}}
	return NewRouter(repo, src, opener, defaults())
}

func scriptedOpener() *simulation.ScriptedOpener {
	return &simulation.ScriptedOpener{Sim: simulation.NewScriptedSimulation(map[domain.RouteID]simulation.ScriptedVehicle{
		"R1": {Speeds: []float64{0}},
		"R2": {Speeds: []float64{10}, ArriveAfter: 3},
	})}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&memRepo{}, scriptedOpener())

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidationRunStoresReport(t *testing.T) {
	repo := &memRepo{}
	h := newTestRouter(repo, scriptedOpener())

	rec := do(t, h, http.MethodPost, "/validations", `{"stall_step_threshold": 10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"R2"}, res.SuccessfulRoutes)
	assert.Equal(t, "Vehicle veh_R1 stalled for 10 consecutive steps.", res.ErrorRoutes["R1"])
	require.Len(t, repo.reports, 1)
	assert.Equal(t, res.RunID, repo.reports[0].RunID)

	rec = do(t, h, http.MethodGet, "/runs/"+res.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, 1, list.Runs[0].ErrorCount)
}

func TestValidationRequestValidation(t *testing.T) {
	h := newTestRouter(&memRepo{}, scriptedOpener())

	cases := map[string]string{
		"unknown field":  `{"hub":"x"}`,
		"negative steps": `{"max_steps":-1}`,
		"bad threshold":  `{"stall_step_threshold":-3}`,
		"bad speed":      `{"stall_speed_threshold":-0.5}`,
		"two objects":    `{} {}`,
		"not json":       `nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/validations", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestValidationSessionStartFailure(t *testing.T) {
	opener := &simulation.ScriptedOpener{Err: domain.ErrSessionStart}
	h := newTestRouter(&memRepo{}, opener)

	rec := do(t, h, http.MethodPost, "/validations", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidationConcurrentRunConflicts(t *testing.T) {
	opener := &blockingOpener{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		sim:     scriptedOpener().Sim,
	}
	h := newTestRouter(nil, opener)

	done := make(chan int)
	go func() {
		rec := do(t, h, http.MethodPost, "/validations", "")
		done <- rec.Code
	}()

	select {
	case <-opener.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first validation never started")
	}

	rec := do(t, h, http.MethodPost, "/validations", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(opener.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRunsNotFoundAndBadLimit(t *testing.T) {
	h := newTestRouter(&memRepo{}, scriptedOpener())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/runs/unknown", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/runs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/runs?limit=abc", "").Code)
}

func TestRunsWithoutStorage(t *testing.T) {
	h := newTestRouter(nil, scriptedOpener())

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/runs", "").Code)
}
