package ratelimit

import (
	"context"
	"time"
)

// TokenBucket is a Limiter backed by a Store.
type TokenBucket struct {
	store  Store
	bucket Bucket
	now    func() time.Time
}

type Option func(*TokenBucket)

// WithBurst sets the bucket capacity. Defaults to the rate.
func WithBurst(burst int) Option {
	return func(tb *TokenBucket) { tb.bucket.Burst = burst }
}

func WithClock(now func() time.Time) Option {
	return func(tb *TokenBucket) { tb.now = now }
}

// NewTokenBucket allows rate takes per interval with bursts of up to burst.
func NewTokenBucket(store Store, rate int, interval time.Duration, opts ...Option) (*TokenBucket, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if rate <= 0 {
		return nil, ErrInvalidLimit
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	tb := &TokenBucket{
		store:  store,
		bucket: Bucket{Rate: rate, Interval: interval, Burst: rate},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(tb)
	}
	if tb.bucket.Burst <= 0 {
		return nil, ErrInvalidBurst
	}
	return tb, nil
}

func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Result, error) {
	return tb.AllowN(ctx, key, 1)
}

func (tb *TokenBucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n > tb.bucket.Burst {
		return nil, ErrExceedsBurst
	}
	return tb.take(ctx, key, max(n, 0))
}

func (tb *TokenBucket) Status(ctx context.Context, key string) (*Result, error) {
	return tb.take(ctx, key, 0)
}

func (tb *TokenBucket) Reset(ctx context.Context, key string) error {
	return tb.store.Delete(ctx, key)
}

func (tb *TokenBucket) take(ctx context.Context, key string, n int) (*Result, error) {
	allowed, remaining, retryAfter, err := tb.store.ConsumeTokens(ctx, key, n, tb.bucket, tb.now())
	if err != nil {
		return nil, err
	}
	return &Result{
		Allowed:    allowed,
		Limit:      tb.bucket.Burst,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// Wait blocks until l grants a token for key or ctx is done.
func Wait(ctx context.Context, l Limiter, key string) error {
	for {
		res, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if res.Allowed {
			return nil
		}
		t := time.NewTimer(max(res.RetryAfter, time.Millisecond))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
