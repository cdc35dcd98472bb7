package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"NarraPulse/internal/catalog"
	"NarraPulse/internal/domain/models"
	"NarraPulse/internal/services/analytics"
	"NarraPulse/internal/usecase"
	"NarraPulse/pkg/logger"
	"NarraPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)         {}
func (nopMetrics) RecordAttempt(string)               {}
func (nopMetrics) RecordCache(string)                 {}
func (nopMetrics) RecordFetchLatency(string, float64) {}
func (nopMetrics) RecordBatch(string)                 {}
func (nopMetrics) RecordAlerts(string, int)           {}

type fakeSource struct {
	mu          sync.Mutex
	invalidated int
}

func (f *fakeSource) Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome {
	base, _ := util.ParseDate("2025-01-01")
	s := &models.MetricSeries{NarrativeID: req.NarrativeID}
	for i := 0; i < 25; i++ {
		s.Points = append(s.Points, models.MetricPoint{
			Date:         base.AddDate(0, 0, i),
			ArticleCount: 10,
			IntensityZ:   float64(i) * 0.1,
		})
	}
	return models.FetchOutcome{NarrativeID: req.NarrativeID, Series: s, Attempts: 1}
}

func (f *fakeSource) InvalidateAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return nil
}

type apiEnv struct {
	e    *echo.Echo
	src  *fakeSource
	orch *usecase.AnalysisOrchestrator
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	src := &fakeSource{}
	cat := catalog.New()
	orch := usecase.NewAnalysisOrchestrator(src, analytics.NewEngine(), nil, nopMetrics{}, l,
		usecase.Options{Pacing: time.Millisecond})

	e := echo.New()
	NewNarrativesHandler(cat).RegisterRoutes(e)
	earliest, _ := util.ParseDate("2024-09-01")
	NewAnalysisHandler(l, cat, orch, src, earliest).RegisterRoutes(e)
	NewProgressWSHandler(l, orch).RegisterRoutes(e)

	return &apiEnv{e: e, src: src, orch: orch}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *apiEnv) do(t *testing.T, method, target, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func waitFinished(t *testing.T, env *apiEnv) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := env.orch.Status()
		if s.State != usecase.StateRunning && s.State != usecase.StateIdle {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run did not finish")
}

func TestListNarratives(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodGet, "/api/narratives?group=core", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("status: %d", resp.Status)
	}
	var list struct {
		Rows  []models.Narrative `json:"rows"`
		Total int64              `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 5 || len(list.Rows) != 5 {
		t.Fatalf("core narratives: %d/%d", len(list.Rows), list.Total)
	}
}

func TestListNarrativesBadGroup(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(t, http.MethodGet, "/api/narratives?group=bogus", "")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status: %d, want 400", resp.Status)
	}
}

func TestGetNarrative(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodGet, "/api/narratives/Inflation", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("status: %d", resp.Status)
	}

	resp = env.do(t, http.MethodGet, "/api/narratives/Unknown", "")
	if resp.Status != http.StatusNotFound {
		t.Fatalf("status: %d, want 404", resp.Status)
	}
}

func TestStartValidation(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodPost, "/api/analysis/start", `{}`)
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status: %d, want 400", resp.Status)
	}

	resp = env.do(t, http.MethodPost, "/api/analysis/start", `{"narrative_ids": ["Nope"]}`)
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status: %d, want 400", resp.Status)
	}
}

func TestAnalysisLifecycle(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodPost, "/api/analysis/start",
		`{"narrative_ids": ["Inflation", "Stagflation"], "period": "90d"}`)
	if resp.Status != http.StatusAccepted {
		t.Fatalf("start status: %d", resp.Status)
	}
	waitFinished(t, env)

	resp = env.do(t, http.MethodGet, "/api/analysis/status", "")
	var status usecase.Status
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.State != usecase.StateCompleted || status.Done != 2 {
		t.Fatalf("status: %+v", status)
	}

	resp = env.do(t, http.MethodGet, "/api/analysis/results", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("results status: %d", resp.Status)
	}
	var list struct {
		Rows  []usecase.NarrativeResult `json:"rows"`
		Total int64                     `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("results: %d", list.Total)
	}
	for _, r := range list.Rows {
		if len(r.Moves) == 0 {
			t.Fatalf("result without moves: %+v", r)
		}
	}

	resp = env.do(t, http.MethodPost, "/api/analysis/reset", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("reset status: %d", resp.Status)
	}
	resp = env.do(t, http.MethodGet, "/api/analysis/results", "")
	if resp.Status != http.StatusNotFound {
		t.Fatalf("results after reset: %d, want 404", resp.Status)
	}
}

func TestResultsThresholdValidation(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(t, http.MethodGet, "/api/analysis/results?threshold=-1", "")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status: %d, want 400", resp.Status)
	}
}

func TestStatusReportsSupportedDomain(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(t, http.MethodGet, "/api/analysis/status", "")
	var status struct {
		State         string `json:"state"`
		SupportedFrom string `json:"supported_from"`
		SupportedTo   string `json:"supported_to"`
	}
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != string(usecase.StateIdle) {
		t.Fatalf("state: %s", status.State)
	}
	if status.SupportedFrom != "2024-09-01" {
		t.Fatalf("supported_from: %s", status.SupportedFrom)
	}
	if _, ok := util.ParseDate(status.SupportedTo); !ok {
		t.Fatalf("supported_to: %s", status.SupportedTo)
	}
}

func TestCancelWithoutRun(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(t, http.MethodPost, "/api/analysis/cancel", "")
	if resp.Status != http.StatusConflict {
		t.Fatalf("status: %d, want 409", resp.Status)
	}
}

func TestInvalidateCache(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(t, http.MethodPost, "/api/cache/invalidate", "")
	if resp.Status != http.StatusOK {
		t.Fatalf("status: %d", resp.Status)
	}
	env.src.mu.Lock()
	defer env.src.mu.Unlock()
	if env.src.invalidated != 1 {
		t.Fatalf("invalidations: %d", env.src.invalidated)
	}
}
