// Package ratelimit implements token bucket rate limiting over a pluggable
// Store.
//
// A bucket holds up to burst tokens and refills rate tokens per interval.
// Refill is computed lazily from the time of the last take, so a Store only
// keeps two numbers per key. MemoryStore serves a single process; RedisStore
// shares buckets across processes with one Lua script per take.
//
//	store := ratelimit.NewRedisStore(rdb, "pulse:")
//	tb, err := ratelimit.NewTokenBucket(store, 100, time.Minute)
//	if err != nil {
//		return err
//	}
//	res, err := tb.Allow(ctx, "dispatch")
//
// Wait blocks until a token is granted, sleeping for the reported RetryAfter
// between attempts. Middleware limits HTTP handlers per request key and
// fails open on storage errors.
package ratelimit
