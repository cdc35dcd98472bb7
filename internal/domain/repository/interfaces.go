package repository

import (
	"context"

	"NarraPulse/internal/domain/models"
)

// MetricsSource retrieves per-narrative metric series from the remote
// service. Fetch is total: every failure is represented in the returned
// outcome, never raised.
type MetricsSource interface {
	Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome
	InvalidateAll(ctx context.Context) error
}

// AlertPublisher ships detected alerts to an external sink.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []models.Alert) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordFetch(narrative, result string)
	RecordAttempt(narrative string)
	RecordCache(result string)
	RecordFetchLatency(narrative string, seconds float64)
	RecordBatch(state string)
	RecordAlerts(narrative string, count int)
}
