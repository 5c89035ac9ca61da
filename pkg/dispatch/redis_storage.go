package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript requeues jobs with expired leases, then moves the earliest
// due job from the pending to the processing set.
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('ZADD', KEYS[2], ARGV[2], ids[1])
return ids[1]
`)

// RedisStorage keeps jobs as JSON strings, with a pending set scored by
// schedule time and a processing set scored by lease deadline. Terminal
// jobs expire after CompletedTTL/FailedTTL; the completed and failed
// counters are cumulative.
type RedisStorage struct {
	rdb          redis.UniversalClient
	prefix       string
	completedTTL time.Duration
	failedTTL    time.Duration
}

func NewRedisStorage(rdb redis.UniversalClient, cfg Config) *RedisStorage {
	d := DefaultConfig()
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = d.RedisPrefix
	}
	if cfg.CompletedTTL <= 0 {
		cfg.CompletedTTL = d.CompletedTTL
	}
	if cfg.FailedTTL <= 0 {
		cfg.FailedTTL = d.FailedTTL
	}
	return &RedisStorage{
		rdb:          rdb,
		prefix:       cfg.RedisPrefix,
		completedTTL: cfg.CompletedTTL,
		failedTTL:    cfg.FailedTTL,
	}
}

func (s *RedisStorage) jobKey(id string) string { return s.prefix + "job:" + id }
func (s *RedisStorage) pendingKey() string      { return s.prefix + "pending" }
func (s *RedisStorage) processingKey() string   { return s.prefix + "processing" }
func (s *RedisStorage) counterKey(st JobStatus) string {
	return s.prefix + "count:" + string(st)
}

func (s *RedisStorage) Create(ctx context.Context, jobs ...*Job) error {
	if len(jobs) == 0 {
		return ErrNoJobs
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, job := range jobs {
			if job == nil {
				return ErrInvalidJob
			}
			b, err := json.Marshal(job)
			if err != nil {
				return err
			}
			id := job.ID.String()
			p.SetNX(ctx, s.jobKey(id), b, 0)
			p.ZAdd(ctx, s.pendingKey(), redis.Z{Score: msScore(job.ScheduledAt), Member: id})
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobCreate, err)
	}
	return nil
}

func (s *RedisStorage) Claim(ctx context.Context, now time.Time, lease time.Duration) (*Job, error) {
	keys := []string{s.pendingKey(), s.processingKey()}
	id, err := claimScript.Run(ctx, s.rdb, keys, msScore(now), msScore(now.Add(lease))).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJobToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatusProcessing
	job.Attempts++
	job.UpdatedAt = now
	if err := s.save(ctx, s.rdb, job, 0); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RedisStorage) Complete(ctx context.Context, id uuid.UUID) error {
	return s.finish(ctx, id, JobStatusCompleted, "", s.completedTTL)
}

func (s *RedisStorage) Fail(ctx context.Context, id uuid.UUID, lastErr string) error {
	return s.finish(ctx, id, JobStatusFailed, lastErr, s.failedTTL)
}

func (s *RedisStorage) Retry(ctx context.Context, id uuid.UUID, lastErr string, at time.Time) error {
	job, err := s.load(ctx, id.String())
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.LastError = lastErr
	job.ScheduledAt = at
	job.UpdatedAt = time.Now()

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.processingKey(), job.ID.String())
		if err := s.save(ctx, p, job, 0); err != nil {
			return err
		}
		p.ZAdd(ctx, s.pendingKey(), redis.Z{Score: msScore(at), Member: job.ID.String()})
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobUpdate, err)
	}
	return nil
}

func (s *RedisStorage) Release(ctx context.Context, id uuid.UUID) error {
	job, err := s.load(ctx, id.String())
	if err != nil {
		return err
	}
	if job.Status != JobStatusProcessing {
		return fmt.Errorf("%w: job %s is not in processing state", ErrJobUpdate, id)
	}
	job.Status = JobStatusPending
	job.Attempts = max(job.Attempts-1, 0)
	job.UpdatedAt = time.Now()

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.processingKey(), job.ID.String())
		if err := s.save(ctx, p, job, 0); err != nil {
			return err
		}
		p.ZAdd(ctx, s.pendingKey(), redis.Z{Score: msScore(job.ScheduledAt), Member: job.ID.String()})
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobUpdate, err)
	}
	return nil
}

func (s *RedisStorage) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.load(ctx, id.String())
}

func (s *RedisStorage) Stats(ctx context.Context, now time.Time) (Stats, error) {
	score := strconv.FormatFloat(msScore(now), 'f', 0, 64)
	var (
		waiting, delayed, active *redis.IntCmd
		completed, failed        *redis.StringCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		waiting = p.ZCount(ctx, s.pendingKey(), "-inf", score)
		delayed = p.ZCount(ctx, s.pendingKey(), "("+score, "+inf")
		active = p.ZCard(ctx, s.processingKey())
		completed = p.Get(ctx, s.counterKey(JobStatusCompleted))
		failed = p.Get(ctx, s.counterKey(JobStatusFailed))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}
	return Stats{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: counter(completed),
		Failed:    counter(failed),
	}, nil
}

func (s *RedisStorage) finish(ctx context.Context, id uuid.UUID, status JobStatus, lastErr string, ttl time.Duration) error {
	job, err := s.load(ctx, id.String())
	if err != nil {
		return err
	}
	if job.Status != JobStatusProcessing {
		return fmt.Errorf("%w: job %s is not in processing state", ErrJobUpdate, id)
	}
	job.Status = status
	if lastErr != "" {
		job.LastError = lastErr
	}
	job.UpdatedAt = time.Now()

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.processingKey(), job.ID.String())
		if err := s.save(ctx, p, job, ttl); err != nil {
			return err
		}
		p.Incr(ctx, s.counterKey(status))
		return nil
	})
	if err != nil {
		return errors.Join(ErrJobUpdate, err)
	}
	return nil
}

func (s *RedisStorage) load(ctx context.Context, id string) (*Job, error) {
	b, err := s.rdb.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStorage) save(ctx context.Context, c redis.Cmdable, job *Job, ttl time.Duration) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.Set(ctx, s.jobKey(job.ID.String()), b, ttl).Err()
}

func counter(c *redis.StringCmd) int64 {
	n, err := c.Int64()
	if err != nil {
		return 0
	}
	return n
}

func msScore(t time.Time) float64 { return float64(t.UnixMilli()) }
