package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

// Limiter caps the delivery rate. Wait blocks until one delivery may start.
type Limiter interface {
	Wait(ctx context.Context) error
}

// LocalLimiter applies the ceiling within one process.
type LocalLimiter struct {
	l *rate.Limiter
}

// NewLocalLimiter allows n deliveries per period with bursts of up to n.
func NewLocalLimiter(n int, per time.Duration) *LocalLimiter {
	if n <= 0 || per <= 0 {
		return &LocalLimiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	return &LocalLimiter{l: rate.NewLimiter(rate.Every(per/time.Duration(n)), n)}
}

func (l *LocalLimiter) Wait(ctx context.Context) error { return l.l.Wait(ctx) }

// SharedLimiter applies the ceiling across all processes by taking from
// one shared bucket.
type SharedLimiter struct {
	l   ratelimit.Limiter
	key string
}

func NewSharedLimiter(l ratelimit.Limiter, key string) *SharedLimiter {
	return &SharedLimiter{l: l, key: key}
}

func (l *SharedLimiter) Wait(ctx context.Context) error {
	if err := ratelimit.Wait(ctx, l.l, l.key); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
