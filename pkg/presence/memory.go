package presence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/geo"
)

type memoryEntry struct {
	Entry
	expiresAt time.Time
}

// MemoryStore is a single-process Store used in tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	options
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		options: newOptions(opts),
	}
}

// lookup returns a live entry; expired ones are dropped. Caller holds the write lock.
func (s *MemoryStore) lookup(donorID string) (memoryEntry, bool) {
	me, ok := s.entries[donorID]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(me.expiresAt) {
		delete(s.entries, donorID)
		return memoryEntry{}, false
	}
	return me, true
}

func (s *MemoryStore) SetAvailable(_ context.Context, e Entry) error {
	e = normalize(e)
	if err := e.validate(); err != nil {
		return err
	}
	now := s.now()
	e.Available = true
	e.UpdatedAt = now.UTC()

	s.mu.Lock()
	s.entries[e.DonorID] = memoryEntry{Entry: e, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetUnavailable(_ context.Context, donorID string) error {
	s.mu.Lock()
	delete(s.entries, donorID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Pause(_ context.Context, donorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.lookup(donorID)
	if !ok {
		return ErrNotFound
	}
	me.Available = false
	me.UpdatedAt = s.now().UTC()
	s.entries[donorID] = me
	return nil
}

func (s *MemoryStore) QueryNearby(_ context.Context, q NearbyQuery) ([]Nearby, error) {
	if q.RadiusKm <= 0 || q.Center.Validate() != nil || q.CountryCode == "" {
		return nil, ErrInvalidQuery
	}
	cc := strings.ToUpper(q.CountryCode)
	bg := strings.ToUpper(q.BloodGroup)
	now := s.now()

	s.mu.RLock()
	var out []Nearby
	for _, me := range s.entries {
		if !now.Before(me.expiresAt) || !me.Available || me.CountryCode != cc {
			continue
		}
		if bg != "" && me.BloodGroup != bg {
			continue
		}
		d := geo.DistanceKm(q.Center, me.Location)
		if d > q.RadiusKm {
			continue
		}
		out = append(out, Nearby{Entry: me.Entry, DistanceKm: geo.RoundKm(d)})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].DonorID < out[j].DonorID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, donorID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.lookup(donorID)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return me.Entry, nil
}

func (s *MemoryStore) Count(_ context.Context, countryCode, bloodGroup string) (int, error) {
	cc := strings.ToUpper(countryCode)
	bg := strings.ToUpper(bloodGroup)
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, me := range s.entries {
		if !now.Before(me.expiresAt) || !me.Available || me.CountryCode != cc {
			continue
		}
		if bg == "" || me.BloodGroup == bg {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Heartbeat(_ context.Context, donorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.lookup(donorID)
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	me.UpdatedAt = now.UTC()
	me.expiresAt = now.Add(s.ttl)
	s.entries[donorID] = me
	return nil
}

func (s *MemoryStore) Release(_ context.Context, donorID, connID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.lookup(donorID)
	if !ok || me.ConnID != connID {
		return false, nil
	}
	delete(s.entries, donorID)
	return true, nil
}
