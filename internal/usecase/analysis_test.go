package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NarraPulse/internal/domain/models"
	"NarraPulse/internal/services/analytics"
	"NarraPulse/pkg/logger"
	"NarraPulse/pkg/util"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)         {}
func (nopMetrics) RecordAttempt(string)               {}
func (nopMetrics) RecordCache(string)                 {}
func (nopMetrics) RecordFetchLatency(string, float64) {}
func (nopMetrics) RecordBatch(string)                 {}
func (nopMetrics) RecordAlerts(string, int)           {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testSeries(id string, n int, lastZ float64) *models.MetricSeries {
	base, _ := util.ParseDate("2025-01-01")
	s := &models.MetricSeries{NarrativeID: id}
	for i := 0; i < n; i++ {
		z := 0.0
		if i == n-1 {
			z = lastZ
		}
		s.Points = append(s.Points, models.MetricPoint{
			Date:         base.AddDate(0, 0, i),
			ArticleCount: 10,
			IntensityZ:   z,
		})
	}
	return s
}

// fakeSource serves canned outcomes and records call order and timing.
// When gated, each Fetch parks until the test releases it.
type fakeSource struct {
	mu    sync.Mutex
	calls []string
	times []time.Time

	fail    map[string]models.FailureKind
	lastZ   float64
	started chan string
	release chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, req.NarrativeID)
	f.times = append(f.times, time.Now())
	f.mu.Unlock()

	if f.started != nil {
		f.started <- req.NarrativeID
		<-f.release
	}

	if kind, ok := f.fail[req.NarrativeID]; ok {
		return models.FetchOutcome{
			NarrativeID: req.NarrativeID,
			Failure:     &models.FetchFailure{Kind: kind, Message: "canned failure"},
			Attempts:    1,
		}
	}
	return models.FetchOutcome{
		NarrativeID: req.NarrativeID,
		Series:      testSeries(req.NarrativeID, 25, f.lastZ),
		Attempts:    1,
	}
}

func (f *fakeSource) InvalidateAll(context.Context) error { return nil }

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (p *fakePublisher) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alerts...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newOrchestrator(t *testing.T, src *fakeSource, pub *fakePublisher, opts Options) *AnalysisOrchestrator {
	t.Helper()
	if opts.Pacing == 0 {
		opts.Pacing = time.Millisecond
	}
	o := NewAnalysisOrchestrator(src, analytics.NewEngine(), nil, nopMetrics{}, testLogger(t), opts)
	if pub != nil {
		o.publisher = pub
	}
	return o
}

func waitTerminal(t *testing.T, o *AnalysisOrchestrator) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := o.Status()
		switch s.State {
		case StateCompleted, StateCancelled, StateFailed:
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run did not finish, status %+v", o.Status())
	return Status{}
}

func dateRange(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, _ := util.ParseDate("2025-01-01")
	end, _ := util.ParseDate("2025-01-25")
	return start, end
}

func TestStartRejectsWhileRunning(t *testing.T) {
	src := &fakeSource{started: make(chan string), release: make(chan struct{})}
	o := newOrchestrator(t, src, nil, Options{})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-src.started

	err := o.Start(context.Background(), []string{"Stagflation"}, start, end)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	src.release <- struct{}{}
	waitTerminal(t, o)
}

func TestStartRequiresNarratives(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, nil, Options{})
	start, end := dateRange(t)
	if err := o.Start(context.Background(), nil, start, end); !errors.Is(err, ErrNoNarratives) {
		t.Fatalf("expected ErrNoNarratives, got %v", err)
	}
}

func TestRunCompletesInRequestOrder(t *testing.T) {
	src := &fakeSource{}
	o := newOrchestrator(t, src, nil, Options{})
	start, end := dateRange(t)
	ids := []string{"Inflation", "Stagflation", "Market crash"}

	if err := o.Start(context.Background(), ids, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := waitTerminal(t, o)

	if s.State != StateCompleted || s.Done != 3 || s.Total != 3 {
		t.Fatalf("status: %+v", s)
	}
	results, err := o.Results("", 0)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results: %d, want 3", len(results))
	}
	for i, id := range ids {
		if results[i].NarrativeID != id {
			t.Fatalf("result %d: %q, want %q", i, results[i].NarrativeID, id)
		}
		if results[i].Failure != nil {
			t.Fatalf("result %d unexpectedly failed: %+v", i, results[i].Failure)
		}
		if len(results[i].Moves) == 0 {
			t.Fatalf("result %d has no moves", i)
		}
	}
}

func TestPartialFailureStillCompletes(t *testing.T) {
	src := &fakeSource{fail: map[string]models.FailureKind{
		"Stagflation": models.FailOutOfRange,
	}}
	o := newOrchestrator(t, src, nil, Options{})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation", "Stagflation", "Market crash"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := waitTerminal(t, o)

	if s.State != StateCompleted {
		t.Fatalf("state: %v, want completed", s.State)
	}
	results, err := o.Results("", 0)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	var failed int
	for _, r := range results {
		if r.Failure != nil {
			failed++
			if r.Failure.Kind != models.FailOutOfRange {
				t.Fatalf("failure kind: %q", r.Failure.Kind)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("failed results: %d, want 1", failed)
	}
}

func TestAllFailuresMarkBatchFailed(t *testing.T) {
	src := &fakeSource{fail: map[string]models.FailureKind{
		"Inflation":   models.FailTransient,
		"Stagflation": models.FailTransient,
	}}
	o := newOrchestrator(t, src, nil, Options{})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation", "Stagflation"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s := waitTerminal(t, o); s.State != StateFailed {
		t.Fatalf("state: %v, want failed", s.State)
	}
}

func TestCancelStopsAtNarrativeBoundary(t *testing.T) {
	src := &fakeSource{started: make(chan string), release: make(chan struct{})}
	// Generous pacing keeps the dispatcher parked in its inter-request
	// wait while the test cancels, so the boundary check is deterministic.
	o := newOrchestrator(t, src, nil, Options{Pacing: 200 * time.Millisecond})
	start, end := dateRange(t)
	ids := []string{"Inflation", "Stagflation", "Market crash", "Trade war", "Labor market"}

	if err := o.Start(context.Background(), ids, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}

	<-src.started
	src.release <- struct{}{}
	<-src.started
	// Second fetch is in flight: request cancellation, then let it finish.
	if err := o.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	src.release <- struct{}{}

	s := waitTerminal(t, o)
	if s.State != StateCancelled {
		t.Fatalf("state: %v, want cancelled", s.State)
	}
	if got := src.callCount(); got != 2 {
		t.Fatalf("remote calls after cancel: %d, want 2", got)
	}
	results, err := o.Results("", 0)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: %d, want the 2 completed outcomes", len(results))
	}
}

func TestCancelWhenIdle(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, nil, Options{})
	if err := o.Cancel(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestPacingFloorBetweenStarts(t *testing.T) {
	src := &fakeSource{}
	o := newOrchestrator(t, src, nil, Options{Pacing: 60 * time.Millisecond})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation", "Stagflation", "Market crash"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, o)

	src.mu.Lock()
	times := append([]time.Time(nil), src.times...)
	src.mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("calls: %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 55*time.Millisecond {
			t.Fatalf("gap %d below pacing floor: %v", i, gap)
		}
	}
}

func TestProgressEvents(t *testing.T) {
	src := &fakeSource{}
	o := newOrchestrator(t, src, nil, Options{})
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation", "Stagflation", "Market crash"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}

	for want := 1; want <= 3; want++ {
		select {
		case p := <-ch:
			if p.Done != want || p.Total != 3 {
				t.Fatalf("progress: %+v, want done=%d total=3", p, want)
			}
			if !p.Succeeded {
				t.Fatalf("progress reported failure: %+v", p)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no progress event %d", want)
		}
	}
	waitTerminal(t, o)
}

func TestResetReturnsToIdle(t *testing.T) {
	src := &fakeSource{}
	o := newOrchestrator(t, src, nil, Options{})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, o)

	if err := o.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s := o.Status(); s.State != StateIdle || s.Done != 0 || s.Total != 0 {
		t.Fatalf("status after reset: %+v", s)
	}
	if _, err := o.Results("", 0); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestResultsBeforeAnyRun(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, nil, Options{})
	if _, err := o.Results("", 0); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestAlertsPublishedOnCompletion(t *testing.T) {
	src := &fakeSource{lastZ: 2.5}
	pub := &fakePublisher{}
	o := newOrchestrator(t, src, pub, Options{Threshold: 1.0})
	start, end := dateRange(t)

	if err := o.Start(context.Background(), []string{"Inflation"}, start, end); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, o)

	// Publication happens right after the state flips; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pub.mu.Lock()
		n := len(pub.alerts)
		pub.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no alerts published")
		}
		time.Sleep(2 * time.Millisecond)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, a := range pub.alerts {
		if a.NarrativeID != "Inflation" || a.AbsMove <= 1.0 {
			t.Fatalf("unexpected alert: %+v", a)
		}
	}
}
