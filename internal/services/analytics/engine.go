package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"NarraPulse/internal/domain/models"
	"NarraPulse/pkg/util"
)

var (
	// ErrInsufficientData is returned when a window holds too few
	// observations to compute a statistic.
	ErrInsufficientData = errors.New("analytics: insufficient data")

	// ErrDateNotFound is returned when the requested date is absent from
	// the series.
	ErrDateNotFound = errors.New("analytics: date not in series")
)

const (
	// DefaultZWindow is the trailing baseline length for z-scores.
	DefaultZWindow = 60

	// DefaultPercentileWindow is the rolling percentile lookback in
	// calendar days.
	DefaultPercentileWindow = 365

	// DefaultThreshold is the absolute move size that raises an alert.
	DefaultThreshold = 1.0

	// zEpsilon floors the z-score denominator so near-constant baselines
	// do not explode the score. Matches the upstream methodology.
	zEpsilon = 0.25

	minZObservations     = 10
	minPercentileSamples = 20
)

// DefaultHorizons are the trading-day lookbacks evaluated per narrative.
var DefaultHorizons = []int{1, 2, 5, 10, 20}

// Field selects one metric value from a point. The boolean reports whether
// the value is present for that date.
type Field func(p models.MetricPoint) (float64, bool)

var (
	FieldArticleCount Field = func(p models.MetricPoint) (float64, bool) {
		return float64(p.ArticleCount), true
	}
	FieldIntensity Field = func(p models.MetricPoint) (float64, bool) {
		return p.IntensityZ, true
	}
	FieldSentiment Field = func(p models.MetricPoint) (float64, bool) {
		if p.SentimentMean == nil {
			return 0, false
		}
		return *p.SentimentMean, true
	}
)

// Engine derives moves, local scores and alerts from fetched series. All
// methods are pure: identical inputs produce identical outputs.
type Engine struct{}

// NewEngine returns a stateless metrics engine.
func NewEngine() *Engine { return &Engine{} }

// ZScore recomputes the intensity z-score for date from the raw article
// counts: the baseline is the `window` observations immediately before the
// date (the date itself is excluded), scored with the sample standard
// deviation floored at epsilon. Fails with ErrInsufficientData when fewer
// than 10 baseline observations exist.
func (e *Engine) ZScore(series *models.MetricSeries, date time.Time, window int) (float64, error) {
	if window <= 0 {
		window = DefaultZWindow
	}
	idx := series.IndexOf(date)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrDateNotFound, util.FormatDate(date))
	}

	lo := idx - window
	if lo < 0 {
		lo = 0
	}
	baseline := series.Points[lo:idx]
	if len(baseline) < minZObservations {
		return 0, fmt.Errorf("%w: %d baseline observations, need %d",
			ErrInsufficientData, len(baseline), minZObservations)
	}

	mean, std := meanStd(baseline)
	denom := std
	if denom < zEpsilon {
		denom = zEpsilon
	}
	return (float64(series.Points[idx].ArticleCount) - mean) / denom, nil
}

// RollingPercentile ranks the field value at date against every value of
// the same field within the trailing window (calendar days, inclusive of
// date). Ties take the average rank: a window maximum scores exactly 100,
// a minimum no less than 100/n, and an all-tied window lands near 50.
// Fails with ErrInsufficientData below 20 samples.
func (e *Engine) RollingPercentile(series *models.MetricSeries, date time.Time, field Field, windowDays int) (float64, error) {
	if windowDays <= 0 {
		windowDays = DefaultPercentileWindow
	}
	idx := series.IndexOf(date)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrDateNotFound, util.FormatDate(date))
	}
	target, ok := field(series.Points[idx])
	if !ok {
		return 0, fmt.Errorf("%w: field absent at %s", ErrInsufficientData, util.FormatDate(date))
	}

	cutoff := date.AddDate(0, 0, -windowDays)
	var less, equal, total int
	for i := idx; i >= 0; i-- {
		p := series.Points[i]
		if p.Date.Before(cutoff) {
			break
		}
		v, ok := field(p)
		if !ok {
			continue
		}
		total++
		switch {
		case v < target:
			less++
		case v == target:
			equal++
		}
	}
	if total < minPercentileSamples {
		return 0, fmt.Errorf("%w: %d samples in window, need %d",
			ErrInsufficientData, total, minPercentileSamples)
	}
	// Average rank of the tied block, counting the target itself.
	rank := float64(less) + (float64(equal)+1)/2
	return 100 * rank / float64(total), nil
}

// HorizonMoves computes, for each horizon h, the change in intensity
// z-score between date and h trading days earlier. Lookbacks are index
// offsets within the series, not calendar arithmetic. A horizon whose
// lookback precedes the first point is returned with Defined=false; zero
// is never substituted for missing data.
func (e *Engine) HorizonMoves(series *models.MetricSeries, date time.Time, horizons []int) (map[int]models.HorizonMove, error) {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	idx := series.IndexOf(date)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDateNotFound, util.FormatDate(date))
	}

	moves := make(map[int]models.HorizonMove, len(horizons))
	current := series.Points[idx].IntensityZ
	for _, h := range horizons {
		prev := idx - h
		if h <= 0 || prev < 0 {
			moves[h] = models.HorizonMove{Horizon: h, Defined: false}
			continue
		}
		moves[h] = models.HorizonMove{
			Horizon: h,
			Move:    current - series.Points[prev].IntensityZ,
			Defined: true,
		}
	}
	return moves, nil
}

// DetectAlerts returns one alert per defined horizon whose absolute move
// exceeds the threshold, ordered by horizon.
func (e *Engine) DetectAlerts(narrativeID string, date time.Time, moves map[int]models.HorizonMove, threshold float64) []models.Alert {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	horizons := make([]int, 0, len(moves))
	for h := range moves {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)

	var alerts []models.Alert
	for _, h := range horizons {
		m := moves[h]
		if !m.Defined {
			continue
		}
		abs := math.Abs(m.Move)
		if abs > threshold {
			alerts = append(alerts, models.Alert{
				NarrativeID: narrativeID,
				Date:        date,
				Horizon:     h,
				Move:        m.Move,
				AbsMove:     abs,
				Threshold:   threshold,
			})
		}
	}
	return alerts
}

// meanStd returns the mean and sample standard deviation of the article
// counts. Callers guarantee at least two points.
func meanStd(points []models.MetricPoint) (float64, float64) {
	n := float64(len(points))
	var sum float64
	for _, p := range points {
		sum += float64(p.ArticleCount)
	}
	mean := sum / n

	var ss float64
	for _, p := range points {
		d := float64(p.ArticleCount) - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
