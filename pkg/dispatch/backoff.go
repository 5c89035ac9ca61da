package dispatch

import (
	"math"
	"time"
)

// Backoff computes retry delays growing by Multiplier from Initial:
// with the defaults 2s, 4s, 8s, ... capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// NextInterval returns the delay after the given failed attempt.
// Attempt starts at 1.
func (b Backoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial := b.Initial
	if initial <= 0 {
		initial = 2 * time.Second
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(initial) * math.Pow(mult, float64(attempt-1))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
