package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/dispatch"
)

type storageFactory func(t *testing.T) dispatch.Storage

func storages() map[string]storageFactory {
	return map[string]storageFactory{
		"memory": func(*testing.T) dispatch.Storage { return dispatch.NewMemoryStorage() },
		"redis": func(t *testing.T) dispatch.Storage {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return dispatch.NewRedisStorage(rdb, dispatch.DefaultConfig())
		},
	}
}

func newJob(at time.Time) *dispatch.Job {
	return &dispatch.Job{
		ID:          uuid.New(),
		Type:        dispatch.JobTypePush,
		Recipient:   "tok-" + uuid.NewString()[:8],
		Payload:     dispatch.Message{EmergencyID: "e1", Body: "O+ needed"},
		MaxAttempts: 3,
		Status:      dispatch.JobStatusPending,
		ScheduledAt: at,
	}
}

func TestStorageContract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, factory := range storages() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("claims earliest due job and counts attempt", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				now := time.Now()
				late := newJob(now.Add(-time.Second))
				early := newJob(now.Add(-time.Minute))
				future := newJob(now.Add(time.Hour))
				require.NoError(t, s.Create(ctx, late, early, future))

				got, err := s.Claim(ctx, now, time.Minute)
				require.NoError(t, err)
				assert.Equal(t, early.ID, got.ID)
				assert.Equal(t, 1, got.Attempts)
				assert.Equal(t, dispatch.JobStatusProcessing, got.Status)

				got, err = s.Claim(ctx, now, time.Minute)
				require.NoError(t, err)
				assert.Equal(t, late.ID, got.ID)

				_, err = s.Claim(ctx, now, time.Minute)
				assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)

				stats, err := s.Stats(ctx, now)
				require.NoError(t, err)
				assert.Equal(t, dispatch.Stats{Delayed: 1, Active: 2}, stats)
			})

			t.Run("retry reschedules", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				now := time.Now()
				job := newJob(now)
				require.NoError(t, s.Create(ctx, job))

				_, err := s.Claim(ctx, now, time.Minute)
				require.NoError(t, err)
				require.NoError(t, s.Retry(ctx, job.ID, "gateway down", now.Add(2*time.Second)))

				_, err = s.Claim(ctx, now.Add(time.Second), time.Minute)
				assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)

				got, err := s.Claim(ctx, now.Add(2*time.Second), time.Minute)
				require.NoError(t, err)
				assert.Equal(t, 2, got.Attempts)
				assert.Equal(t, "gateway down", got.LastError)
			})

			t.Run("release takes back the attempt", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				now := time.Now()
				job := newJob(now)
				require.NoError(t, s.Create(ctx, job))

				_, err := s.Claim(ctx, now, time.Minute)
				require.NoError(t, err)
				require.NoError(t, s.Release(ctx, job.ID))

				got, err := s.Get(ctx, job.ID)
				require.NoError(t, err)
				assert.Equal(t, dispatch.JobStatusPending, got.Status)
				assert.Zero(t, got.Attempts)

				got, err = s.Claim(ctx, now, time.Minute)
				require.NoError(t, err)
				assert.Equal(t, 1, got.Attempts)

				require.NoError(t, s.Complete(ctx, job.ID))
				assert.ErrorIs(t, s.Release(ctx, job.ID), dispatch.ErrJobUpdate)
			})

			t.Run("terminal states", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				now := time.Now()
				ok, bad := newJob(now), newJob(now)
				require.NoError(t, s.Create(ctx, ok, bad))

				for range 2 {
					_, err := s.Claim(ctx, now, time.Minute)
					require.NoError(t, err)
				}
				require.NoError(t, s.Complete(ctx, ok.ID))
				require.NoError(t, s.Fail(ctx, bad.ID, "invalid token"))

				got, err := s.Get(ctx, bad.ID)
				require.NoError(t, err)
				assert.Equal(t, dispatch.JobStatusFailed, got.Status)
				assert.Equal(t, "invalid token", got.LastError)

				assert.ErrorIs(t, s.Complete(ctx, ok.ID), dispatch.ErrJobUpdate)

				stats, err := s.Stats(ctx, now)
				require.NoError(t, err)
				assert.Equal(t, dispatch.Stats{Completed: 1, Failed: 1}, stats)
			})

			t.Run("expired lease is claimable again", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				now := time.Now()
				job := newJob(now)
				require.NoError(t, s.Create(ctx, job))

				_, err := s.Claim(ctx, now, time.Second)
				require.NoError(t, err)
				_, err = s.Claim(ctx, now.Add(500*time.Millisecond), time.Second)
				assert.ErrorIs(t, err, dispatch.ErrNoJobToClaim)

				got, err := s.Claim(ctx, now.Add(2*time.Second), time.Second)
				require.NoError(t, err)
				assert.Equal(t, job.ID, got.ID)
				assert.Equal(t, 2, got.Attempts)
			})

			t.Run("unknown job", func(t *testing.T) {
				t.Parallel()
				s := factory(t)
				_, err := s.Get(ctx, uuid.New())
				assert.ErrorIs(t, err, dispatch.ErrJobNotFound)
				assert.ErrorIs(t, s.Create(ctx), dispatch.ErrNoJobs)
			})
		})
	}
}
