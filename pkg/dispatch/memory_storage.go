package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage for tests and local development
type MemoryStorage struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Job
	leases map[uuid.UUID]time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:   make(map[uuid.UUID]*Job),
		leases: make(map[uuid.UUID]time.Time),
	}
}

func (ms *MemoryStorage) Create(_ context.Context, jobs ...*Job) error {
	if len(jobs) == 0 {
		return ErrNoJobs
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, job := range jobs {
		if job == nil {
			return ErrInvalidJob
		}
		if _, exists := ms.jobs[job.ID]; exists {
			return fmt.Errorf("%w: job %s already exists", ErrJobCreate, job.ID)
		}
	}
	for _, job := range jobs {
		// Clone to prevent external modifications
		cp := *job
		ms.jobs[job.ID] = &cp
	}
	return nil
}

// Claim picks the due job with the earliest schedule.
func (ms *MemoryStorage) Claim(_ context.Context, now time.Time, lease time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.expireLeases(now)

	var best *Job
	for _, job := range ms.jobs {
		if job.Status != JobStatusPending || job.ScheduledAt.After(now) {
			continue
		}
		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}
	if best == nil {
		return nil, ErrNoJobToClaim
	}

	best.Status = JobStatusProcessing
	best.Attempts++
	best.UpdatedAt = now
	ms.leases[best.ID] = now.Add(lease)

	cp := *best
	return &cp, nil
}

func (ms *MemoryStorage) Complete(_ context.Context, id uuid.UUID) error {
	return ms.finish(id, JobStatusCompleted, "")
}

func (ms *MemoryStorage) Fail(_ context.Context, id uuid.UUID, lastErr string) error {
	return ms.finish(id, JobStatusFailed, lastErr)
}

func (ms *MemoryStorage) Retry(_ context.Context, id uuid.UUID, lastErr string, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processing(id)
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.LastError = lastErr
	job.ScheduledAt = at
	job.UpdatedAt = time.Now()
	delete(ms.leases, id)
	return nil
}

func (ms *MemoryStorage) Release(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processing(id)
	if err != nil {
		return err
	}
	job.Status = JobStatusPending
	job.Attempts = max(job.Attempts-1, 0)
	job.UpdatedAt = time.Now()
	delete(ms.leases, id)
	return nil
}

func (ms *MemoryStorage) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (ms *MemoryStorage) Stats(_ context.Context, now time.Time) (Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var s Stats
	for _, job := range ms.jobs {
		switch job.Status {
		case JobStatusPending:
			if job.ScheduledAt.After(now) {
				s.Delayed++
			} else {
				s.Waiting++
			}
		case JobStatusProcessing:
			s.Active++
		case JobStatusCompleted:
			s.Completed++
		case JobStatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (ms *MemoryStorage) finish(id uuid.UUID, status JobStatus, lastErr string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.processing(id)
	if err != nil {
		return err
	}
	job.Status = status
	if lastErr != "" {
		job.LastError = lastErr
	}
	job.UpdatedAt = time.Now()
	delete(ms.leases, id)
	return nil
}

// processing requires ms.mu held.
func (ms *MemoryStorage) processing(id uuid.UUID) (*Job, error) {
	job, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != JobStatusProcessing {
		return nil, fmt.Errorf("%w: job %s is not in processing state", ErrJobUpdate, id)
	}
	return job, nil
}

// expireLeases returns jobs of crashed workers to pending. Requires ms.mu.
func (ms *MemoryStorage) expireLeases(now time.Time) {
	for id, until := range ms.leases {
		if until.Before(now) {
			if job, ok := ms.jobs[id]; ok && job.Status == JobStatusProcessing {
				job.Status = JobStatusPending
			}
			delete(ms.leases, id)
		}
	}
}
