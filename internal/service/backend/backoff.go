package backend

import (
	"math/rand"
	"time"
)

// AttemptState tracks one remote attempt through the retry loop.
type AttemptState int

const (
	AttemptPending AttemptState = iota
	AttemptWaiting
	AttemptSucceeded
	AttemptFailedTransient
	AttemptFailedTerminal
)

func (s AttemptState) String() string {
	switch s {
	case AttemptPending:
		return "pending"
	case AttemptWaiting:
		return "waiting"
	case AttemptSucceeded:
		return "succeeded"
	case AttemptFailedTransient:
		return "failed_transient"
	case AttemptFailedTerminal:
		return "failed_terminal"
	default:
		return "unknown"
	}
}

// Backoff returns the wait after failed attempt k (1-based): base*2^(k-1),
// capped. Pure function of the attempt number; jitter is applied on top by
// the caller.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= cap {
			return cap
		}
	}
	if wait > cap {
		return cap
	}
	return wait
}

// Jitter returns a random duration in [0, max).
func Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
