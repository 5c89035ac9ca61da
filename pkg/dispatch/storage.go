package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists jobs. Claim hands a due job to exactly one worker and
// counts the attempt; a claimed job whose lease expires becomes claimable
// again.
type Storage interface {
	Create(ctx context.Context, jobs ...*Job) error
	Claim(ctx context.Context, now time.Time, lease time.Duration) (*Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Retry puts the job back to pending, due at the given time.
	Retry(ctx context.Context, id uuid.UUID, lastErr string, at time.Time) error
	// Release returns a claimed job to pending untouched and takes back the
	// attempt Claim counted.
	Release(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, lastErr string) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
}
