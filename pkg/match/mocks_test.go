package match_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/pulse/pkg/match"
	"github.com/dmitrymomot/pulse/pkg/presence"
)

type MockPresence struct {
	mock.Mock
	presence.Store
}

func (m *MockPresence) QueryNearby(ctx context.Context, q presence.NearbyQuery) ([]presence.Nearby, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]presence.Nearby), args.Error(1)
}

type MockDonorSource struct {
	mock.Mock
}

func (m *MockDonorSource) NearbyEligibleDonors(ctx context.Context, q match.DonorQuery) ([]match.Candidate, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]match.Candidate), args.Error(1)
}

type MockFacilitySource struct {
	mock.Mock
}

func (m *MockFacilitySource) NearbyFacilities(ctx context.Context, q match.FacilityQuery) ([]match.Facility, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]match.Facility), args.Error(1)
}
