package ratelimit

import (
	"context"
	"time"
)

// Result describes one take from a bucket.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the requested tokens are available.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter grants tokens per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
	// Status reports the bucket without taking from it.
	Status(ctx context.Context, key string) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Bucket is the refill policy a Store applies to a key.
type Bucket struct {
	Rate     int
	Interval time.Duration
	Burst    int
}

// ttl is how long an idle bucket takes to refill completely. After that its
// state equals a fresh bucket and may be dropped.
func (b Bucket) ttl() time.Duration {
	return time.Duration(int64(b.Burst)*int64(b.Interval)/int64(b.Rate)) + time.Second
}

// refill returns the token count at now for a bucket last seen at ts.
func (b Bucket) refill(tokens float64, ts, now time.Time) float64 {
	if elapsed := now.Sub(ts); elapsed > 0 {
		tokens += float64(elapsed) * float64(b.Rate) / float64(b.Interval)
	}
	return min(tokens, float64(b.Burst))
}

// wait returns how long until missing tokens refill.
func (b Bucket) wait(missing float64) time.Duration {
	return time.Duration(missing * float64(b.Interval) / float64(b.Rate))
}

// Store keeps bucket state. ConsumeTokens refills the bucket to now, then
// takes n tokens when enough are available, as one atomic step. n may be
// zero to read the bucket.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, n int, b Bucket, now time.Time) (allowed bool, remaining int, retryAfter time.Duration, err error)
	Delete(ctx context.Context, key string) error
}
