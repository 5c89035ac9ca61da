package emergency

import (
	"context"

	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/hub"
)

// HubActions serves inbound connection messages with a Service.
type HubActions struct {
	svc *Service
}

var _ hub.Actions = (*HubActions)(nil)

func NewHubActions(svc *Service) *HubActions {
	return &HubActions{svc: svc}
}

func (a *HubActions) Snapshot(ctx context.Context, emergencyID string) (any, error) {
	return a.svc.Snapshot(ctx, emergencyID)
}

func (a *HubActions) Respond(ctx context.Context, who hub.Identity, req hub.RespondRequest) (any, error) {
	if !who.IsDonor() {
		return nil, hub.ErrNotDonor
	}
	if req.Available == nil {
		return nil, ErrInvalidResponse
	}
	return a.svc.RecordResponse(ctx, req.EmergencyID, who.UserID, *req.Available, req.ETAMinutes)
}

// UpdatePresence ties the donor's availability to connID, so the entry is
// released when that connection goes away. Going unavailable from a socket
// pauses the entry instead of removing it.
func (a *HubActions) UpdatePresence(ctx context.Context, who hub.Identity, connID string, req hub.PresenceRequest) error {
	if !req.Available {
		return a.svc.PauseDonor(ctx, who.UserID)
	}
	bg := who.BloodGroup
	if bg == "" {
		bg = req.BloodGroup
	}
	return a.svc.SetDonorAvailable(ctx, DonorAvailability{
		DonorID:     who.UserID,
		Location:    geo.Point{Lat: req.Latitude, Lon: req.Longitude},
		BloodGroup:  bg,
		CountryCode: who.CountryCode,
		ConnID:      connID,
	})
}
