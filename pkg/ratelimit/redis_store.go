package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript refills and takes from the bucket hash at KEYS[1].
// ARGV: now (ms), n, rate, interval (ms), burst, ttl (ms).
// Returns {allowed, floor(remaining), wait (ms)}.
var consumeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local n = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local burst = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if not tokens or not ts then
	tokens = burst
	ts = now
end
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate / interval)
else
	now = ts
end

local allowed = 0
local wait = 0
if tokens >= n then
	tokens = tokens - n
	allowed = 1
else
	wait = math.ceil((n - tokens) * interval / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return {allowed, math.floor(tokens), wait}
`)

// RedisStore shares buckets between processes.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore namespaces keys as <prefix>ratelimit:<key>.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix + "ratelimit:"}
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, n int, b Bucket, now time.Time) (bool, int, time.Duration, error) {
	res, err := consumeScript.Run(ctx, s.rdb, []string{s.prefix + key},
		now.UnixMilli(), n, b.Rate, b.Interval.Milliseconds(), b.Burst, b.ttl().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("ratelimit: consume %q: %w", key, err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("ratelimit: consume %q: unexpected reply %v", key, res)
	}
	return res[0] == 1, int(res[1]), time.Duration(res[2]) * time.Millisecond, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: delete %q: %w", key, err)
	}
	return nil
}
