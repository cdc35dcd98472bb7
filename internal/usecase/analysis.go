package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"NarraPulse/internal/domain/models"
	"NarraPulse/internal/domain/repository"
	"NarraPulse/internal/services/analytics"
	"NarraPulse/pkg/logger"
	"NarraPulse/pkg/util"
)

// BatchState is the lifecycle of one analysis run.
type BatchState string

const (
	StateIdle      BatchState = "idle"
	StateRunning   BatchState = "running"
	StateCompleted BatchState = "completed"
	StateCancelled BatchState = "cancelled"
	StateFailed    BatchState = "failed"
)

var (
	ErrAlreadyRunning = errors.New("usecase: analysis already running")
	ErrNotRunning     = errors.New("usecase: no analysis running")
	ErrNoResults      = errors.New("usecase: no finished analysis")
	ErrNoNarratives   = errors.New("usecase: no narratives selected")
)

// Progress is emitted after each narrative completes.
type Progress struct {
	NarrativeID string `json:"narrative_id"`
	Done        int    `json:"done"`
	Total       int    `json:"total"`
	Succeeded   bool   `json:"succeeded"`
}

// Status is a pollable snapshot of the current or last run.
type Status struct {
	State      BatchState `json:"state"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NarrativeResult is the derived view of one narrative's outcome.
type NarrativeResult struct {
	NarrativeID string                     `json:"narrative_id"`
	Date        string                     `json:"date,omitempty"`
	Moves       map[int]models.HorizonMove `json:"moves,omitempty"`
	Alerts      []models.Alert             `json:"alerts,omitempty"`
	FromCache   bool                       `json:"from_cache"`
	Attempts    int                        `json:"attempts"`
	Failure     *models.FetchFailure       `json:"failure,omitempty"`
}

// Options tunes one orchestrator. Zero values fall back to defaults.
type Options struct {
	Pacing           time.Duration
	Parallelism      int
	Window           int
	PercentileWindow int
	Horizons         []int
	Threshold        float64
}

func (o *Options) applyDefaults() {
	if o.Pacing <= 0 {
		o.Pacing = 500 * time.Millisecond
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	if o.Window <= 0 {
		o.Window = analytics.DefaultZWindow
	}
	if o.PercentileWindow <= 0 {
		o.PercentileWindow = analytics.DefaultPercentileWindow
	}
	if len(o.Horizons) == 0 {
		o.Horizons = analytics.DefaultHorizons
	}
	if o.Threshold <= 0 {
		o.Threshold = analytics.DefaultThreshold
	}
}

// AnalysisOrchestrator runs batch fetches over selected narratives with
// request pacing, progress reporting and cooperative cancellation. One run
// at a time: Idle -> Running -> Completed | Cancelled | Failed, and Reset
// returns any terminal state to Idle.
type AnalysisOrchestrator struct {
	source    repository.MetricsSource
	engine    *analytics.Engine
	publisher repository.AlertPublisher
	metrics   repository.Metrics
	log       *logger.Logger
	opts      Options

	mu          sync.Mutex
	state       BatchState
	order       []string
	outcomes    map[string]models.FetchOutcome
	done        int
	startedAt   time.Time
	finishedAt  time.Time
	cancelled   bool
	stopCh      chan struct{}
	runCancel   context.CancelFunc
	subscribers map[chan Progress]struct{}
}

// NewAnalysisOrchestrator wires the orchestrator. publisher may be nil when
// alert shipping is disabled.
func NewAnalysisOrchestrator(
	source repository.MetricsSource,
	engine *analytics.Engine,
	publisher repository.AlertPublisher,
	m repository.Metrics,
	l *logger.Logger,
	opts Options,
) *AnalysisOrchestrator {
	opts.applyDefaults()
	return &AnalysisOrchestrator{
		source:      source,
		engine:      engine,
		publisher:   publisher,
		metrics:     m,
		log:         l,
		opts:        opts,
		state:       StateIdle,
		subscribers: make(map[chan Progress]struct{}),
	}
}

// Start launches a batch over ids for [start, end]. It returns immediately;
// the run proceeds in the background. Rejected with ErrAlreadyRunning while
// a run is in flight. Starting from a terminal state discards the previous
// outcomes.
func (o *AnalysisOrchestrator) Start(ctx context.Context, ids []string, start, end time.Time) error {
	if len(ids) == 0 {
		return ErrNoNarratives
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}

	// Detach from the caller: the HTTP request finishes long before the
	// batch does. runCancel aborts in-flight fetches on shutdown only;
	// user cancellation waits for the narrative boundary.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	o.state = StateRunning
	o.order = append([]string(nil), ids...)
	o.outcomes = make(map[string]models.FetchOutcome, len(ids))
	o.done = 0
	o.startedAt = time.Now()
	o.finishedAt = time.Time{}
	o.cancelled = false
	o.stopCh = make(chan struct{})
	o.runCancel = cancel
	o.mu.Unlock()

	o.metrics.RecordBatch(string(StateRunning))
	o.log.Info("analysis started",
		logger.Int("narratives", len(ids)),
		logger.String("start", util.FormatDate(start)),
		logger.String("end", util.FormatDate(end)),
	)

	go o.run(runCtx, ids, start, end)
	return nil
}

func (o *AnalysisOrchestrator) run(ctx context.Context, ids []string, start, end time.Time) {
	defer o.runCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Parallelism)

	for i, id := range ids {
		if o.isCancelled() || ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := o.paceWait(ctx); err != nil {
				break
			}
			if o.isCancelled() {
				break
			}
		}

		id := id
		g.Go(func() error {
			out := o.source.Fetch(gctx, models.FetchRequest{
				NarrativeID:      id,
				Start:            start,
				End:              end,
				Window:           o.opts.Window,
				PercentileWindow: o.opts.PercentileWindow,
			})
			o.record(out)
			return nil
		})
	}
	g.Wait()

	o.finish(ctx)
}

// paceWait enforces the floor between the starts of consecutive remote
// calls. Interrupted by Cancel or shutdown.
func (o *AnalysisOrchestrator) paceWait(ctx context.Context) error {
	o.mu.Lock()
	stop := o.stopCh
	o.mu.Unlock()

	select {
	case <-time.After(o.opts.Pacing):
		return nil
	case <-stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *AnalysisOrchestrator) isCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

func (o *AnalysisOrchestrator) record(out models.FetchOutcome) {
	o.mu.Lock()
	o.outcomes[out.NarrativeID] = out
	o.done++
	p := Progress{
		NarrativeID: out.NarrativeID,
		Done:        o.done,
		Total:       len(o.order),
		Succeeded:   out.OK(),
	}
	subs := make([]chan Progress, 0, len(o.subscribers))
	for ch := range o.subscribers {
		subs = append(subs, ch)
	}
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- p:
		default: // slow subscriber, drop
		}
	}
}

func (o *AnalysisOrchestrator) finish(ctx context.Context) {
	o.mu.Lock()
	var state BatchState
	switch {
	case o.cancelled:
		state = StateCancelled
	case len(o.outcomes) > 0 && o.failedCountLocked() == len(o.outcomes):
		state = StateFailed
	default:
		state = StateCompleted
	}
	o.state = state
	o.finishedAt = time.Now()
	done, total := o.done, len(o.order)
	o.mu.Unlock()

	o.metrics.RecordBatch(string(state))
	o.log.Info("analysis finished",
		logger.String("state", string(state)),
		logger.Int("done", done),
		logger.Int("total", total),
	)

	if state == StateCompleted {
		o.publishAlerts(ctx)
	}
}

func (o *AnalysisOrchestrator) failedCountLocked() int {
	n := 0
	for _, out := range o.outcomes {
		if !out.OK() {
			n++
		}
	}
	return n
}

// publishAlerts derives alerts at each series' latest date and ships them
// to the configured sink. Publish failures are logged, never raised.
func (o *AnalysisOrchestrator) publishAlerts(ctx context.Context) {
	if o.publisher == nil {
		return
	}

	o.mu.Lock()
	outcomes := make([]models.FetchOutcome, 0, len(o.outcomes))
	for _, out := range o.outcomes {
		outcomes = append(outcomes, out)
	}
	o.mu.Unlock()

	var alerts []models.Alert
	for _, out := range outcomes {
		if !out.OK() || out.Series.Len() == 0 {
			continue
		}
		last := out.Series.Points[out.Series.Len()-1].Date
		moves, err := o.engine.HorizonMoves(out.Series, last, o.opts.Horizons)
		if err != nil {
			continue
		}
		found := o.engine.DetectAlerts(out.NarrativeID, last, moves, o.opts.Threshold)
		if len(found) > 0 {
			o.metrics.RecordAlerts(out.NarrativeID, len(found))
			alerts = append(alerts, found...)
		}
	}
	if len(alerts) == 0 {
		return
	}

	if err := o.publisher.PublishAlerts(ctx, alerts); err != nil {
		o.log.Error("alert publish failed", logger.Error(err), logger.Int("alerts", len(alerts)))
		return
	}
	o.log.Info("alerts published", logger.Int("alerts", len(alerts)))
}

// Cancel requests a stop. The in-flight fetch is allowed to complete; no
// further requests are issued after the current narrative boundary.
func (o *AnalysisOrchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return ErrNotRunning
	}
	if !o.cancelled {
		o.cancelled = true
		close(o.stopCh)
	}
	return nil
}

// Reset returns a terminal state to Idle, discarding outcomes. The fetch
// cache is untouched.
func (o *AnalysisOrchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return ErrAlreadyRunning
	}
	o.state = StateIdle
	o.order = nil
	o.outcomes = nil
	o.done = 0
	o.startedAt = time.Time{}
	o.finishedAt = time.Time{}
	return nil
}

// Status returns a snapshot of the current or last run.
func (o *AnalysisOrchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{State: o.state, Done: o.done, Total: len(o.order)}
	if !o.startedAt.IsZero() {
		t := o.startedAt
		s.StartedAt = &t
	}
	if !o.finishedAt.IsZero() {
		t := o.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// Subscribe registers a progress listener. The returned func must be called
// to unsubscribe; events are dropped rather than block a slow consumer.
func (o *AnalysisOrchestrator) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)
	o.mu.Lock()
	o.subscribers[ch] = struct{}{}
	o.mu.Unlock()

	return ch, func() {
		o.mu.Lock()
		delete(o.subscribers, ch)
		o.mu.Unlock()
	}
}

// Results derives per-narrative moves and alerts from the last finished
// run. date selects the evaluation point (defaults to each series' latest
// date); threshold overrides the configured alert threshold. Partial
// failures appear alongside successes, in request order.
func (o *AnalysisOrchestrator) Results(date string, threshold float64) ([]NarrativeResult, error) {
	o.mu.Lock()
	state := o.state
	order := append([]string(nil), o.order...)
	outcomes := make(map[string]models.FetchOutcome, len(o.outcomes))
	for id, out := range o.outcomes {
		outcomes[id] = out
	}
	o.mu.Unlock()

	if state == StateIdle || state == StateRunning {
		return nil, ErrNoResults
	}
	if threshold <= 0 {
		threshold = o.opts.Threshold
	}

	results := make([]NarrativeResult, 0, len(order))
	for _, id := range order {
		out, ok := outcomes[id]
		if !ok {
			continue // cancelled before this narrative was fetched
		}
		r := NarrativeResult{
			NarrativeID: id,
			FromCache:   out.FromCache,
			Attempts:    out.Attempts,
			Failure:     out.Failure,
		}
		if out.OK() && out.Series.Len() > 0 {
			target := out.Series.Points[out.Series.Len()-1].Date
			if date != "" {
				d, ok := util.ParseDate(date)
				if !ok {
					return nil, errors.New("usecase: invalid date")
				}
				target = d
			}
			if moves, err := o.engine.HorizonMoves(out.Series, target, o.opts.Horizons); err == nil {
				r.Date = util.FormatDate(target)
				r.Moves = moves
				r.Alerts = o.engine.DetectAlerts(id, target, moves, threshold)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Close aborts any in-flight run. Used on shutdown.
func (o *AnalysisOrchestrator) Close() error {
	o.mu.Lock()
	cancel := o.runCancel
	if o.state == StateRunning && !o.cancelled {
		o.cancelled = true
		close(o.stopCh)
	}
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}
