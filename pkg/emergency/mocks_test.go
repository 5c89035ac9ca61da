package emergency_test

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/pulse/pkg/changebus"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/match"
)

var errStoreDown = errors.New("store down")

type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) FindCandidates(ctx context.Context, q match.Query) match.Result {
	return m.Called(ctx, q).Get(0).(match.Result)
}

func (m *MockMatcher) FindFacilities(ctx context.Context, q match.FacilityQuery) ([]match.Facility, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]match.Facility), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyDonors(ctx context.Context, n dispatch.Notice, donorIDs []string) (int, error) {
	args := m.Called(ctx, n, donorIDs)
	return args.Int(0), args.Error(1)
}

type sent struct {
	target  string
	event   string
	payload any
}

// fakeHub records broadcasts and direct sends.
type fakeHub struct {
	mu    sync.Mutex
	sent  []sent
	conns map[string]bool
}

func (h *fakeHub) Broadcast(_ context.Context, room, event string, payload any) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{target: room, event: event, payload: payload})
	return 1
}

func (h *fakeHub) SendToConn(_ context.Context, connID, event string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{target: "conn:" + connID, event: event, payload: payload})
	return nil
}

func (h *fakeHub) to(target string) []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sent
	for _, s := range h.sent {
		if s.target == target {
			out = append(out, s)
		}
	}
	return out
}

func (h *fakeHub) events(target string) []string {
	var out []string
	for _, s := range h.to(target) {
		out = append(out, s.event)
	}
	return out
}

type publishRecorder struct {
	mu       sync.Mutex
	channels []string
	payloads []any
	err      error
}

func (p *publishRecorder) Publish(_ context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *publishRecorder) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channels...)
}

var _ changebus.Publisher = (*publishRecorder)(nil)

// failingRepo fails chosen operations of an in-memory repository.
type failingRepo struct {
	*emergency.MemoryRepository
	insertErr error
	countsErr error
}

func (r *failingRepo) Insert(ctx context.Context, e *emergency.Emergency) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.MemoryRepository.Insert(ctx, e)
}

func (r *failingRepo) SetMatchCounts(ctx context.Context, id string, donors, facilities int) (*emergency.Emergency, error) {
	if r.countsErr != nil {
		return nil, r.countsErr
	}
	return r.MemoryRepository.SetMatchCounts(ctx, id, donors, facilities)
}

type gateFunc func(changebus.EmergencyStatusUpdate) bool

func (f gateFunc) Accept(u changebus.EmergencyStatusUpdate) bool { return f(u) }
