package models

import (
	"fmt"
	"time"
)

// FailureKind classifies why a fetch failed.
type FailureKind string

const (
	FailNotFound   FailureKind = "not_found"
	FailOutOfRange FailureKind = "out_of_range"
	FailTransient  FailureKind = "transient"
	FailAuth       FailureKind = "auth_failure"
	FailClient     FailureKind = "client_error"
	FailMalformed  FailureKind = "malformed"
)

// Retryable reports whether failures of this kind may be retried.
func (k FailureKind) Retryable() bool {
	return k == FailTransient
}

// FetchFailure is the structured failure branch of a FetchOutcome.
type FetchFailure struct {
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("%s: %s (attempts=%d)", f.Kind, f.Message, f.Attempts)
}

// FetchRequest asks for one narrative's metric series over a date range.
// Window and PercentileWindow are forwarded to the remote service.
type FetchRequest struct {
	NarrativeID      string
	Start            time.Time
	End              time.Time
	Window           int
	PercentileWindow int
}

// FetchOutcome is the total result of a fetch attempt: exactly one of
// Series or Failure is set. Partial failure across narratives is an
// expected state, not an exceptional one.
type FetchOutcome struct {
	NarrativeID string        `json:"narrative_id"`
	Series      *MetricSeries `json:"series,omitempty"`
	Failure     *FetchFailure `json:"failure,omitempty"`
	Attempts    int           `json:"attempts"`
	FromCache   bool          `json:"from_cache"`
}

// OK reports whether the fetch produced a series.
func (o FetchOutcome) OK() bool { return o.Series != nil && o.Failure == nil }
