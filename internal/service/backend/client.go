package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"time"

	"NarraPulse/internal/catalog"
	"NarraPulse/internal/domain/models"
	"NarraPulse/internal/domain/repository"
	"NarraPulse/pkg/cache"
	xhttp "NarraPulse/pkg/http"
	"NarraPulse/pkg/logger"
	"NarraPulse/pkg/util"
)

// Config holds the injected backend parameters. The client never reads the
// environment itself.
type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration // base per-request timeout
	TimeoutPerDay time.Duration // added per requested day
	TimeoutCap    time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	CacheTTL      time.Duration
	EarliestDate  time.Time // start of the service's supported domain
}

// Client fetches per-narrative metric series from the remote service,
// shielding callers from transient failures with a TTL cache and
// retry-with-backoff. Fetch is total: it always returns an outcome.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	cache   cache.Service
	catalog *catalog.Catalog
	metrics repository.Metrics
	log     *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a backend client.
func New(cfg Config, cat *catalog.Catalog, store cache.Service, m repository.Metrics, l *logger.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TimeoutPerDay <= 0 {
		cfg.TimeoutPerDay = 500 * time.Millisecond
	}
	if cfg.TimeoutCap <= 0 {
		cfg.TimeoutCap = 120 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.TimeoutCap)),
		cache:   store,
		catalog: cat,
		metrics: m,
		log:     l,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch resolves the request into a FetchOutcome. Per-narrative failures
// are carried in the outcome, never raised.
func (c *Client) Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome {
	if req.Window <= 0 {
		req.Window = 60
	}
	if req.PercentileWindow <= 0 {
		req.PercentileWindow = 365
	}
	if req.Window > 365 || req.PercentileWindow > 730 {
		msg := fmt.Sprintf("window %d / percentile_window %d exceed the accepted maximums (365, 730)",
			req.Window, req.PercentileWindow)
		return c.fail(req.NarrativeID, models.FailClient, msg, 0)
	}

	if _, err := c.catalog.Resolve(req.NarrativeID); err != nil {
		return c.fail(req.NarrativeID, models.FailNotFound, err.Error(), 0)
	}
	if req.End.Before(req.Start) {
		return c.fail(req.NarrativeID, models.FailClient, "start_date must be on or before end_date", 0)
	}
	if req.End.Before(c.cfg.EarliestDate) || req.Start.After(c.now()) {
		msg := fmt.Sprintf("range %s..%s outside supported domain (%s..latest)",
			util.FormatDate(req.Start), util.FormatDate(req.End), util.FormatDate(c.cfg.EarliestDate))
		return c.fail(req.NarrativeID, models.FailOutOfRange, msg, 0)
	}

	key := cacheKey(req)
	if series, ok := c.cacheGet(ctx, key); ok {
		c.metrics.RecordCache("hit")
		c.metrics.RecordFetch(req.NarrativeID, "cache")
		return models.FetchOutcome{NarrativeID: req.NarrativeID, Series: series, FromCache: true}
	}
	c.metrics.RecordCache("miss")

	timeout := c.requestTimeout(req)
	var lastMsg string

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.metrics.RecordAttempt(req.NarrativeID)
		if attempt > 1 {
			c.log.Warn("retrying fetch",
				logger.String("narrative", req.NarrativeID),
				logger.Int("attempt", attempt),
			)
		}

		start := c.now()
		series, kind, msg := c.attempt(ctx, req, timeout)
		c.metrics.RecordFetchLatency(req.NarrativeID, time.Since(start).Seconds())

		if series != nil {
			c.logAttempt(req.NarrativeID, attempt, AttemptSucceeded)
			c.cacheSet(ctx, key, series)
			c.metrics.RecordFetch(req.NarrativeID, "success")
			return models.FetchOutcome{NarrativeID: req.NarrativeID, Series: series, Attempts: attempt}
		}

		lastMsg = msg
		if !kind.Retryable() {
			c.logAttempt(req.NarrativeID, attempt, AttemptFailedTerminal)
			return c.fail(req.NarrativeID, kind, msg, attempt)
		}
		c.logAttempt(req.NarrativeID, attempt, AttemptFailedTransient)

		if attempt == c.cfg.MaxAttempts {
			break
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return c.fail(req.NarrativeID, models.FailTransient, "canceled: "+msg, attempt)
		}

		c.logAttempt(req.NarrativeID, attempt, AttemptWaiting)
		wait := Backoff(attempt, c.cfg.BackoffBase, c.cfg.BackoffCap) + Jitter(c.cfg.BackoffBase/2)
		if err := c.sleep(ctx, wait); err != nil {
			return c.fail(req.NarrativeID, models.FailTransient, "canceled while backing off: "+msg, attempt)
		}
	}

	return c.fail(req.NarrativeID, models.FailTransient, lastMsg, c.cfg.MaxAttempts)
}

// InvalidateAll clears every cached entry regardless of TTL. In-flight
// fetches complete and may repopulate the cache.
func (c *Client) InvalidateAll(ctx context.Context) error {
	return c.cache.Flush(ctx)
}

// attempt issues one remote call. Returns the parsed series on success, or
// a failure kind and message.
func (c *Client) attempt(ctx context.Context, req models.FetchRequest, timeout time.Duration) (*models.MetricSeries, models.FailureKind, string) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers := map[string]string{}
	if c.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + c.cfg.Token
	}

	var points []wirePoint
	err := c.http.SendAndParse(reqCtx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.cfg.BaseURL + "/narratives/" + url.PathEscape(req.NarrativeID) + "/metrics",
		Headers: headers,
		QueryParams: map[string][]string{
			"start_date":        {util.FormatDate(req.Start)},
			"end_date":          {util.FormatDate(req.End)},
			"window":            {fmt.Sprintf("%d", req.Window)},
			"percentile_window": {fmt.Sprintf("%d", req.PercentileWindow)},
		},
	}, &points)
	if err != nil {
		kind, msg := classify(err)
		return nil, kind, msg
	}

	series, err := buildSeries(req.NarrativeID, points)
	if err != nil {
		return nil, models.FailMalformed, err.Error()
	}
	return series, "", ""
}

func (c *Client) logAttempt(id string, attempt int, state AttemptState) {
	c.log.Debug("fetch attempt",
		logger.String("narrative", id),
		logger.Int("attempt", attempt),
		logger.String("state", state.String()),
	)
}

func (c *Client) requestTimeout(req models.FetchRequest) time.Duration {
	days := util.RangeDays(req.Start, req.End)
	if days < 0 {
		days = 0
	}
	timeout := c.cfg.Timeout + time.Duration(days)*c.cfg.TimeoutPerDay
	if timeout > c.cfg.TimeoutCap {
		return c.cfg.TimeoutCap
	}
	return timeout
}

func (c *Client) fail(id string, kind models.FailureKind, msg string, attempts int) models.FetchOutcome {
	c.metrics.RecordFetch(id, string(kind))
	return models.FetchOutcome{
		NarrativeID: id,
		Failure:     &models.FetchFailure{Kind: kind, Message: msg, Attempts: attempts},
		Attempts:    attempts,
	}
}

func (c *Client) cacheGet(ctx context.Context, key string) (*models.MetricSeries, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var series models.MetricSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, false
	}
	return &series, true
}

func (c *Client) cacheSet(ctx context.Context, key string, series *models.MetricSeries) {
	data, err := json.Marshal(series)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.log.Warn("cache set failed", logger.Error(err))
	}
}

func cacheKey(req models.FetchRequest) string {
	return fmt.Sprintf("metrics|%s|%s|%s|%d|%d",
		req.NarrativeID, util.FormatDate(req.Start), util.FormatDate(req.End),
		req.Window, req.PercentileWindow)
}

// classify maps a transport or status error to a failure kind.
func classify(err error) (models.FailureKind, string) {
	var statusErr *xhttp.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 401 || statusErr.StatusCode == 403:
			return models.FailAuth, statusErr.Error()
		case statusErr.StatusCode == 429 || statusErr.StatusCode >= 500:
			return models.FailTransient, statusErr.Error()
		default:
			return models.FailClient, statusErr.Error()
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailTransient, "request timed out: " + err.Error()
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return models.FailTransient, "connection failed: " + err.Error()
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return models.FailTransient, "network error: " + err.Error()
	}
	// Unrecognized errors (malformed URL, decode failures) are not retried.
	return models.FailClient, err.Error()
}

// wirePoint mirrors the remote response. Percentiles arrive as percent-rank
// fractions in [0,1] and are scaled to [0,100] on parse.
type wirePoint struct {
	Date                string   `json:"date"`
	ArticleCount        int      `json:"article_count"`
	RollingMean         float64  `json:"rolling_mean"`
	RollingStd          float64  `json:"rolling_std"`
	Intensity           float64  `json:"intensity"`
	SentimentMean       *float64 `json:"sentiment_mean"`
	IntensityPercentile float64  `json:"intensity_percentile"`
	SentimentPercentile *float64 `json:"sentiment_percentile"`
}

func buildSeries(narrativeID string, points []wirePoint) (*models.MetricSeries, error) {
	series := &models.MetricSeries{
		NarrativeID: narrativeID,
		Points:      make([]models.MetricPoint, 0, len(points)),
	}
	for i, wp := range points {
		date, ok := util.ParseDate(wp.Date)
		if !ok {
			return nil, fmt.Errorf("series %s: bad date %q at index %d", narrativeID, wp.Date, i)
		}
		point := models.MetricPoint{
			Date:                date,
			ArticleCount:        wp.ArticleCount,
			RollingMean:         wp.RollingMean,
			RollingStd:          wp.RollingStd,
			IntensityZ:          wp.Intensity,
			SentimentMean:       wp.SentimentMean,
			IntensityPercentile: wp.IntensityPercentile * 100,
		}
		if wp.SentimentPercentile != nil {
			sp := *wp.SentimentPercentile * 100
			point.SentimentPercentile = &sp
		}
		series.Points = append(series.Points, point)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}
