package changebus

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/pulse/pkg/cache"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Broadcaster is the part of the hub the relay drives.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload any) int
	BroadcastAll(ctx context.Context, event string, payload any) int
}

// statusMark is the newest state seen for one emergency.
type statusMark struct {
	revision  int64
	matched   int
	facility  int
	confirmed int
	rank      int
}

// Relay turns change events into hub broadcasts.
type Relay struct {
	hub    Broadcaster
	origin string
	ledger *cache.LRU[string, statusMark]
	log    *slog.Logger
}

type RelayOption func(*Relay)

func WithRelayLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRelay creates a relay for the process identified by origin. Messages
// carrying the same origin were already broadcast locally and are skipped.
func NewRelay(h Broadcaster, origin string, ledgerSize int, opts ...RelayOption) *Relay {
	if ledgerSize <= 0 {
		ledgerSize = DefaultConfig().LedgerSize
	}
	r := &Relay{
		hub:    h,
		origin: origin,
		ledger: cache.NewLRU[string, statusMark](ledgerSize),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin is the id this relay stamps on and filters from change events.
func (r *Relay) Origin() string { return r.origin }

// Register installs the relay's handlers on b.
func (r *Relay) Register(b *Bus) {
	On(b, ChannelEmergencyCreated, r.emergencyCreated)
	On(b, ChannelEmergencyResponse, r.emergencyResponse)
	On(b, ChannelEmergencyStatusUpdate, r.emergencyStatus)
	On(b, ChannelHospitalStatusUpdate, r.hospitalStatus)
	On(b, ChannelInventoryUpdate, r.inventory)
}

func (r *Relay) own(o Origin) bool { return r.origin != "" && o.Origin == r.origin }

// Accept records u in the ledger and reports whether it is newer than
// anything seen for the same emergency. Local broadcasts go through Accept
// too, so a late remote update cannot roll the room back.
//
// With revisions the newest revision wins. Without them (revision 0) the
// update must not move any counter or the status backwards.
func (r *Relay) Accept(u EmergencyStatusUpdate) bool {
	next := statusMark{
		revision:  u.Revision,
		matched:   u.MatchedDonors,
		facility:  u.MatchedFacilities,
		confirmed: u.ConfirmedDonors,
		rank:      statusRank(u.NewStatus),
	}
	_, accepted := r.ledger.Update(u.ID, func(old statusMark, ok bool) (statusMark, bool) {
		return next, !ok || newer(old, next)
	})
	return accepted
}

func newer(old, next statusMark) bool {
	if next.rank < old.rank {
		return false
	}
	if old.revision > 0 && next.revision > 0 {
		return next.revision > old.revision
	}
	if next.rank > old.rank {
		return true
	}
	if next.matched < old.matched || next.facility < old.facility || next.confirmed < old.confirmed {
		return false
	}
	return next != old
}

// statusRank orders statuses so that terminal ones never revert to active.
func statusRank(s string) int {
	switch strings.ToLower(s) {
	case "hidden", "resolved":
		return 1
	}
	return 0
}

// StatusPayload is the emergency:status-updated event body.
func StatusPayload(u EmergencyStatusUpdate) map[string]any {
	ts := u.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	p := map[string]any{
		"emergencyId":       u.ID,
		"status":            u.NewStatus,
		"matchedDonors":     u.MatchedDonors,
		"matchedFacilities": u.MatchedFacilities,
		"confirmedDonors":   u.ConfirmedDonors,
		"revision":          u.Revision,
		"timestamp":         ts,
	}
	if u.OldStatus != "" {
		p["oldStatus"] = u.OldStatus
	}
	return p
}

// CreatedPayload is the emergency:created event body.
func CreatedPayload(e EmergencyCreated) map[string]any {
	return map[string]any{
		"emergencyId":  e.ID,
		"bloodGroup":   e.BloodGroup,
		"urgency":      e.Urgency,
		"hospitalName": e.HospitalName,
		"latitude":     e.Latitude,
		"longitude":    e.Longitude,
		"createdAt":    e.CreatedAt,
	}
}

// ResponsePayload is the emergency:response event body.
func ResponsePayload(e EmergencyResponse) map[string]any {
	p := map[string]any{
		"emergencyId": e.EmergencyID,
		"donorId":     e.DonorID,
		"available":   e.Available,
		"status":      e.Status,
		"timestamp":   e.CreatedAt,
	}
	if e.ETAMinutes != nil {
		p["etaMinutes"] = *e.ETAMinutes
	}
	return p
}

func (r *Relay) emergencyCreated(ctx context.Context, e EmergencyCreated) error {
	if r.own(e.Origin) {
		return nil
	}
	room := hub.RegionRoom(e.CountryCode)
	n := r.hub.Broadcast(ctx, room, hub.EventEmergencyCreated, CreatedPayload(e))
	r.relayed(ctx, ChannelEmergencyCreated, room, n, e.ID)
	return nil
}

func (r *Relay) emergencyResponse(ctx context.Context, e EmergencyResponse) error {
	if r.own(e.Origin) {
		return nil
	}
	room := hub.EmergencyRoom(e.EmergencyID)
	n := r.hub.Broadcast(ctx, room, hub.EventEmergencyResponse, ResponsePayload(e))
	r.relayed(ctx, ChannelEmergencyResponse, room, n, e.EmergencyID)
	return nil
}

func (r *Relay) emergencyStatus(ctx context.Context, u EmergencyStatusUpdate) error {
	if r.own(u.Origin) {
		return nil
	}
	if !r.Accept(u) {
		r.log.LogAttrs(ctx, slog.LevelDebug, "stale status update dropped",
			logger.Component("changebus"),
			logger.EmergencyID(u.ID),
			slog.Int64("revision", u.Revision),
		)
		return nil
	}
	room := hub.EmergencyRoom(u.ID)
	n := r.hub.Broadcast(ctx, room, hub.EventEmergencyStatusUpdated, StatusPayload(u))
	r.relayed(ctx, ChannelEmergencyStatusUpdate, room, n, u.ID)
	return nil
}

func (r *Relay) hospitalStatus(ctx context.Context, h HospitalStatusUpdate) error {
	if r.own(h.Origin) {
		return nil
	}
	cc := h.CountryCode
	if cc == "" {
		cc = "in"
	}
	room := hub.RegionRoom(cc)
	n := r.hub.Broadcast(ctx, room, hub.EventHospitalStatusUpdated, map[string]any{
		"hospitalId": h.ID,
		"name":       h.Name,
		"type":       h.Type,
		"emergency":  h.Emergency,
		"isActive":   h.IsActive,
		"latitude":   h.Latitude,
		"longitude":  h.Longitude,
	})
	r.relayed(ctx, ChannelHospitalStatusUpdate, room, n, "")
	return nil
}

func (r *Relay) inventory(ctx context.Context, u InventoryUpdate) error {
	if r.own(u.Origin) {
		return nil
	}
	n := r.hub.BroadcastAll(ctx, hub.EventInventoryUpdated, map[string]any{
		"hospitalId":  u.HospitalID,
		"bloodGroup":  u.BloodGroup,
		"status":      u.Status,
		"units":       u.Units,
		"lastUpdated": u.LastUpdated,
	})
	r.relayed(ctx, ChannelInventoryUpdate, "*", n, "")
	return nil
}

func (r *Relay) relayed(ctx context.Context, channel, room string, n int, emergencyID string) {
	r.log.LogAttrs(ctx, slog.LevelDebug, "change relayed",
		logger.Component("changebus"),
		logger.Channel(channel),
		logger.Room(room),
		logger.EmergencyID(emergencyID),
		slog.Int("receivers", n),
	)
}
