package models

import (
	"fmt"
	"time"
)

// MetricPoint holds one calendar date of remote-computed metrics for one
// narrative. The core never mutates these fields, only derives from them.
type MetricPoint struct {
	Date                time.Time `json:"date"`
	ArticleCount        int       `json:"article_count"`
	RollingMean         float64   `json:"rolling_mean"`
	RollingStd          float64   `json:"rolling_std"`
	IntensityZ          float64   `json:"intensity"`
	SentimentMean       *float64  `json:"sentiment_mean"`
	IntensityPercentile float64   `json:"intensity_percentile"`
	SentimentPercentile *float64  `json:"sentiment_percentile"`
}

// MetricSeries is an ordered daily series for one narrative, strictly
// increasing by date with no duplicates.
type MetricSeries struct {
	NarrativeID string        `json:"narrative_id"`
	Points      []MetricPoint `json:"points"`
}

// Len returns the number of points.
func (s *MetricSeries) Len() int { return len(s.Points) }

// IndexOf returns the position of date in the series, or -1.
func (s *MetricSeries) IndexOf(date time.Time) int {
	for i := range s.Points {
		if s.Points[i].Date.Equal(date) {
			return i
		}
	}
	return -1
}

// Validate checks the series invariants: strictly increasing dates with
// gaps of at most one calendar day, percentiles in [0,100], sentiment in
// [-1,1]. Violations are reported, never clamped.
func (s *MetricSeries) Validate() error {
	for i, p := range s.Points {
		if i > 0 {
			prev := s.Points[i-1].Date
			if !p.Date.After(prev) {
				return fmt.Errorf("series %s: dates not strictly increasing at index %d", s.NarrativeID, i)
			}
			if p.Date.Sub(prev) > 24*time.Hour {
				return fmt.Errorf("series %s: gap larger than one day before %s", s.NarrativeID, p.Date.Format("2006-01-02"))
			}
		}
		if p.IntensityPercentile < 0 || p.IntensityPercentile > 100 {
			return fmt.Errorf("series %s: intensity percentile %.4f out of [0,100] at %s",
				s.NarrativeID, p.IntensityPercentile, p.Date.Format("2006-01-02"))
		}
		if p.SentimentPercentile != nil && (*p.SentimentPercentile < 0 || *p.SentimentPercentile > 100) {
			return fmt.Errorf("series %s: sentiment percentile %.4f out of [0,100] at %s",
				s.NarrativeID, *p.SentimentPercentile, p.Date.Format("2006-01-02"))
		}
		if p.SentimentMean != nil && (*p.SentimentMean < -1 || *p.SentimentMean > 1) {
			return fmt.Errorf("series %s: sentiment %.4f out of [-1,1] at %s",
				s.NarrativeID, *p.SentimentMean, p.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// HorizonMove is the change in intensity z-score between a date and h
// trading days prior. Defined is false when the lookback date precedes the
// series history; Move is never substituted with zero.
type HorizonMove struct {
	Horizon int     `json:"horizon"`
	Move    float64 `json:"move"`
	Defined bool    `json:"defined"`
}

// Alert flags a horizon move whose absolute value exceeds the threshold.
// Alerts are recomputed every run and never persisted.
type Alert struct {
	NarrativeID string    `json:"narrative_id"`
	Date        time.Time `json:"date"`
	Horizon     int       `json:"horizon"`
	Move        float64   `json:"move"`
	AbsMove     float64   `json:"abs_move"`
	Threshold   float64   `json:"threshold"`
}
