package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/dmitrymomot/pulse/pkg/cache"
)

type bucketState struct {
	tokens float64
	ts     time.Time
}

// MemoryStore keeps buckets in process. The least recently used keys are
// evicted once capacity is reached; an evicted key starts over with a full
// bucket.
type MemoryStore struct {
	buckets *cache.LRU[string, bucketState]
}

// NewMemoryStore panics when capacity is not positive.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{buckets: cache.NewLRU[string, bucketState](capacity)}
}

func (s *MemoryStore) ConsumeTokens(_ context.Context, key string, n int, b Bucket, now time.Time) (bool, int, time.Duration, error) {
	var (
		allowed bool
		wait    time.Duration
	)
	st, _ := s.buckets.Update(key, func(old bucketState, ok bool) (bucketState, bool) {
		tokens := float64(b.Burst)
		if ok {
			tokens = b.refill(old.tokens, old.ts, now)
		}
		if tokens >= float64(n) {
			allowed = true
			tokens -= float64(n)
		} else {
			wait = b.wait(float64(n) - tokens)
		}
		return bucketState{tokens: tokens, ts: now}, true
	})
	return allowed, int(math.Floor(st.tokens)), wait, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.buckets.Remove(key)
	return nil
}
