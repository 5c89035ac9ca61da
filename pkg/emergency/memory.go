package emergency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps emergencies in process memory. It is used in tests
// and when running without a database.
type MemoryRepository struct {
	mu          sync.Mutex
	emergencies map[string]*Emergency
	responses   map[string]*Response
	now         func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		emergencies: make(map[string]*Emergency),
		responses:   make(map[string]*Response),
		now:         time.Now,
	}
}

func responseKey(emergencyID, donorID string) string { return emergencyID + "/" + donorID }

func (m *MemoryRepository) Insert(_ context.Context, e *Emergency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := m.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.Revision = 1
	cp := *e
	m.emergencies[e.ID] = &cp
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryRepository) SetMatchCounts(_ context.Context, id string, donors, facilities int) (*Emergency, error) {
	return m.update(id, func(e *Emergency) error {
		e.MatchedDonors = max(e.MatchedDonors, donors)
		e.MatchedFacilities = max(e.MatchedFacilities, facilities)
		return nil
	})
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, next Status) (*Emergency, error) {
	return m.update(id, func(e *Emergency) error {
		if !e.Status.CanTransition(next) {
			return ErrInvalidTransition
		}
		e.Status = next
		return nil
	})
}

func (m *MemoryRepository) GetResponse(_ context.Context, emergencyID, donorID string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.responses[responseKey(emergencyID, donorID)]
	if !ok {
		return nil, ErrResponseNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) UpsertResponse(_ context.Context, r *Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.emergencies[r.EmergencyID]; !ok {
		return ErrNotFound
	}
	now := m.now()
	key := responseKey(r.EmergencyID, r.DonorID)
	prev, answered := m.responses[key]
	r.Status = NextResponseStatus(answered, r.Available)
	if answered {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
	} else {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := *r
	m.responses[key] = &cp
	return nil
}

func (m *MemoryRepository) RecountConfirmed(_ context.Context, id string) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	n := 0
	for _, r := range m.responses {
		if r.EmergencyID == id && r.Status == ResponseConfirmed {
			n++
		}
	}
	e.ConfirmedDonors = n
	e.Revision++
	e.UpdatedAt = m.now()
	cp := *e
	return &cp, nil
}

func (m *MemoryRepository) update(id string, fn func(*Emergency) error) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	e.Revision++
	e.UpdatedAt = m.now()
	cp := *e
	return &cp, nil
}
