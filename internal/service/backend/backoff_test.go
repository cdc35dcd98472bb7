package backend

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	base := time.Second
	cap := 8 * time.Second

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		got := Backoff(i+1, base, cap)
		if got != w {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		got := Backoff(attempt, 250*time.Millisecond, 4*time.Second)
		if got < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", attempt, got, prev)
		}
		prev = got
	}
}

func TestBackoffFloorsAttempt(t *testing.T) {
	if got := Backoff(0, time.Second, 8*time.Second); got != time.Second {
		t.Fatalf("attempt 0: got %v, want base", got)
	}
	if got := Backoff(-3, time.Second, 8*time.Second); got != time.Second {
		t.Fatalf("negative attempt: got %v, want base", got)
	}
}

func TestJitterBounds(t *testing.T) {
	if got := Jitter(0); got != 0 {
		t.Fatalf("jitter with zero max: got %v", got)
	}
	max := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := Jitter(max)
		if got < 0 || got >= max {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestAttemptStateString(t *testing.T) {
	cases := map[AttemptState]string{
		AttemptPending:         "pending",
		AttemptWaiting:         "waiting",
		AttemptSucceeded:       "succeeded",
		AttemptFailedTransient: "failed_transient",
		AttemptFailedTerminal:  "failed_terminal",
		AttemptState(42):       "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: got %q, want %q", state, got, want)
		}
	}
}
