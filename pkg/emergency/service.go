package emergency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pulse/pkg/changebus"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/match"
	"github.com/dmitrymomot/pulse/pkg/presence"
)

// Matcher finds donors and facilities near an emergency.
type Matcher interface {
	FindCandidates(ctx context.Context, q match.Query) match.Result
	FindFacilities(ctx context.Context, q match.FacilityQuery) ([]match.Facility, error)
}

// Broadcaster delivers events to live connections of this process.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload any) int
	SendToConn(ctx context.Context, connID, event string, payload any) error
}

// Notifier enqueues push and SMS jobs for donors.
type Notifier interface {
	NotifyDonors(ctx context.Context, n dispatch.Notice, donorIDs []string) (int, error)
}

// StatusGate filters status updates that are older than one already
// delivered for the same emergency.
type StatusGate interface {
	Accept(u changebus.EmergencyStatusUpdate) bool
}

// Service coordinates emergencies, responses and donor availability.
type Service struct {
	repo     Repository
	matcher  Matcher
	hub      Broadcaster
	presence presence.Store
	notifier Notifier
	pub      changebus.Publisher
	origin   string
	gate     StatusGate
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		def := DefaultConfig()
		if cfg.DonorRadiusKm <= 0 {
			cfg.DonorRadiusKm = def.DonorRadiusKm
		}
		if cfg.FacilityRadiusKm <= 0 {
			cfg.FacilityRadiusKm = def.FacilityRadiusKm
		}
		if cfg.MatchTimeout <= 0 {
			cfg.MatchTimeout = def.MatchTimeout
		}
		if cfg.NotifyTimeout <= 0 {
			cfg.NotifyTimeout = def.NotifyTimeout
		}
		s.cfg = cfg
	}
}

func WithPresence(p presence.Store) Option {
	return func(s *Service) { s.presence = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher publishes every change for other processes, tagged with
// origin so this process can skip its own messages.
func WithPublisher(p changebus.Publisher, origin string) Option {
	return func(s *Service) {
		s.pub = p
		s.origin = origin
	}
}

func WithStatusGate(g StatusGate) Option {
	return func(s *Service) { s.gate = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo Repository, matcher Matcher, h Broadcaster, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		matcher: matcher,
		hub:     h,
		cfg:     DefaultConfig(),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEmergency validates and persists the emergency, then matches,
// broadcasts and notifies. Only validation and persistence errors are
// returned; the emergency stays active even when matching fails.
func (s *Service) CreateEmergency(ctx context.Context, in CreateInput) (*Emergency, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	start := s.now()
	e := &Emergency{
		ID:           uuid.NewString(),
		RequesterID:  in.RequesterID,
		BloodGroup:   in.BloodGroup,
		Urgency:      in.Urgency,
		HospitalName: in.HospitalName,
		BedNumber:    in.BedNumber,
		Ward:         in.Ward,
		PatientName:  in.PatientName,
		ContactPhone: in.ContactPhone,
		Notes:        in.Notes,
		Location:     geo.Point{Lat: in.Latitude, Lon: in.Longitude},
		CountryCode:  in.CountryCode,
		Status:       StatusActive,
		CreatedAt:    start,
	}
	s.phase(ctx, e, PhaseCreated, start)

	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, errors.Join(ErrPersist, err)
	}
	s.phase(ctx, e, PhasePersisted, start)

	candidates, facilities := s.match(ctx, e)
	s.phase(ctx, e, PhaseMatched, start,
		slog.Int("donors", len(candidates)),
		slog.Int("facilities", len(facilities)),
	)

	if updated, err := s.repo.SetMatchCounts(ctx, e.ID, len(candidates), len(facilities)); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to store match counts",
			logger.Component("emergency"),
			logger.EmergencyID(e.ID),
			logger.Error(err),
		)
		e.MatchedDonors = len(candidates)
		e.MatchedFacilities = len(facilities)
	} else {
		e = updated
	}

	s.broadcastCreated(ctx, e, candidates)
	s.phase(ctx, e, PhaseBroadcast, start)

	s.notify(ctx, e, candidates)
	s.phase(ctx, e, PhaseNotified, start)
	return e, nil
}

// match runs donor and facility lookups concurrently under MatchTimeout.
// Failures leave the respective list empty.
func (s *Service) match(ctx context.Context, e *Emergency) ([]match.Candidate, []match.Facility) {
	if s.matcher == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MatchTimeout)
	defer cancel()

	var (
		candidates []match.Candidate
		facilities []match.Facility
		g          errgroup.Group
	)
	g.Go(func() error {
		res := s.matcher.FindCandidates(ctx, match.Query{
			Center:      e.Location,
			RadiusKm:    s.cfg.DonorRadiusKm,
			BloodGroup:  e.BloodGroup,
			CountryCode: e.CountryCode,
			MaxResults:  s.cfg.MaxCandidates,
		})
		if res.Err != nil {
			s.log.LogAttrs(ctx, slog.LevelWarn, "donor matching failed",
				logger.Component("emergency"),
				logger.EmergencyID(e.ID),
				logger.Error(res.Err),
			)
		} else if res.Degraded() {
			s.log.LogAttrs(ctx, slog.LevelWarn, "donor matching degraded to durable storage",
				logger.Component("emergency"),
				logger.EmergencyID(e.ID),
			)
		}
		candidates = res.Candidates
		return nil
	})
	g.Go(func() error {
		f, err := s.matcher.FindFacilities(ctx, match.FacilityQuery{
			Center:      e.Location,
			RadiusKm:    s.cfg.FacilityRadiusKm,
			CountryCode: e.CountryCode,
		})
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelWarn, "facility matching failed",
				logger.Component("emergency"),
				logger.EmergencyID(e.ID),
				logger.Error(err),
			)
			return nil
		}
		facilities = f
		return nil
	})
	_ = g.Wait()
	return candidates, facilities
}

func (s *Service) broadcastCreated(ctx context.Context, e *Emergency, candidates []match.Candidate) {
	created := changebus.EmergencyCreated{
		Origin:       changebus.Origin{Origin: s.origin},
		ID:           e.ID,
		BloodGroup:   e.BloodGroup,
		Urgency:      string(e.Urgency),
		HospitalName: e.HospitalName,
		Latitude:     e.Location.Lat,
		Longitude:    e.Location.Lon,
		CountryCode:  e.CountryCode,
		CreatedAt:    e.CreatedAt,
	}
	if s.hub != nil {
		s.hub.Broadcast(ctx, hub.RegionRoom(e.CountryCode), hub.EventEmergencyCreated, changebus.CreatedPayload(created))
		for _, c := range candidates {
			if c.ConnID == "" {
				continue
			}
			err := s.hub.SendToConn(ctx, c.ConnID, hub.EventEmergencyNearby, nearbyPayload(e, c))
			if err != nil && !errors.Is(err, hub.ErrConnNotFound) {
				s.log.LogAttrs(ctx, slog.LevelWarn, "nearby notice not delivered",
					logger.Component("emergency"),
					logger.EmergencyID(e.ID),
					logger.DonorID(c.DonorID),
					logger.ConnID(c.ConnID),
					logger.Error(err),
				)
			}
		}
	}
	s.publish(ctx, changebus.ChannelEmergencyCreated, created, e.ID)
	s.statusChanged(ctx, e, "")
}

func nearbyPayload(e *Emergency, c match.Candidate) map[string]any {
	return map[string]any{
		"emergencyId":  e.ID,
		"bloodGroup":   e.BloodGroup,
		"urgency":      e.Urgency,
		"hospitalName": e.HospitalName,
		"bedNumber":    e.BedNumber,
		"latitude":     e.Location.Lat,
		"longitude":    e.Location.Lon,
		"distanceKm":   geo.RoundKm(c.DistanceKm),
		"createdAt":    e.CreatedAt,
	}
}

func (s *Service) notify(ctx context.Context, e *Emergency, candidates []match.Candidate) {
	if s.notifier == nil || len(candidates) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DonorID
	}
	_, err := s.notifier.NotifyDonors(ctx, dispatch.Notice{
		EmergencyID:  e.ID,
		BloodGroup:   e.BloodGroup,
		Urgency:      string(e.Urgency),
		HospitalName: e.HospitalName,
		BedNumber:    e.BedNumber,
		CountryCode:  e.CountryCode,
		Critical:     e.Urgency == UrgencyCritical,
	}, ids)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to enqueue notifications",
			logger.Component("emergency"),
			logger.EmergencyID(e.ID),
			logger.Error(err),
		)
	}
}

// RecordResponse stores a donor's answer, recounts confirmed donors and
// broadcasts the change. Broadcast failures never fail the call.
func (s *Service) RecordResponse(ctx context.Context, emergencyID, donorID string, available bool, eta *int) (*Response, error) {
	if emergencyID == "" || donorID == "" {
		return nil, ErrInvalidResponse
	}
	if eta != nil && (*eta < 0 || *eta > 24*60) {
		return nil, fmt.Errorf("%w: eta out of range", ErrInvalidResponse)
	}

	e, err := s.repo.Get(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusActive {
		return nil, ErrNotActive
	}

	r := &Response{
		EmergencyID: emergencyID,
		DonorID:     donorID,
		Available:   available,
		ETAMinutes:  eta,
	}
	if err := s.repo.UpsertResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}

	if updated, err := s.repo.RecountConfirmed(ctx, emergencyID); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to recount confirmed donors",
			logger.Component("emergency"),
			logger.EmergencyID(emergencyID),
			logger.Error(err),
		)
	} else {
		e = updated
	}

	ev := changebus.EmergencyResponse{
		Origin:      changebus.Origin{Origin: s.origin},
		ID:          r.ID,
		EmergencyID: emergencyID,
		DonorID:     donorID,
		Available:   available,
		Status:      string(r.Status),
		ETAMinutes:  eta,
		CreatedAt:   r.UpdatedAt,
	}
	if s.hub != nil {
		payload := changebus.ResponsePayload(ev)
		s.hub.Broadcast(ctx, hub.EmergencyRoom(emergencyID), hub.EventEmergencyResponse, payload)
		if e.RequesterID != "" {
			s.hub.Broadcast(ctx, hub.UserRoom(e.RequesterID), hub.EventDonorResponded, payload)
		}
	}
	s.publish(ctx, changebus.ChannelEmergencyResponse, ev, emergencyID)
	s.statusChanged(ctx, e, "")

	s.log.LogAttrs(ctx, slog.LevelInfo, "donor responded",
		logger.Component("emergency"),
		logger.EmergencyID(emergencyID),
		logger.DonorID(donorID),
		slog.String("status", string(r.Status)),
		slog.Int("confirmed", e.ConfirmedDonors),
	)
	return r, nil
}

// Hide takes an active emergency off public listings.
func (s *Service) Hide(ctx context.Context, id string) (*Emergency, error) {
	return s.transition(ctx, id, StatusHidden)
}

// Resolve closes an active emergency.
func (s *Service) Resolve(ctx context.Context, id string) (*Emergency, error) {
	return s.transition(ctx, id, StatusResolved)
}

func (s *Service) transition(ctx context.Context, id string, next Status) (*Emergency, error) {
	e, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}
	s.statusChanged(ctx, e, StatusActive)
	s.log.LogAttrs(ctx, slog.LevelInfo, "emergency status changed",
		logger.Component("emergency"),
		logger.EmergencyID(id),
		slog.String("status", string(next)),
	)
	return e, nil
}

// Snapshot returns the current aggregate state of an emergency.
func (s *Service) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// statusChanged broadcasts and publishes the aggregate state. The gate
// keeps a late update from replacing a newer one already delivered.
func (s *Service) statusChanged(ctx context.Context, e *Emergency, old Status) {
	u := changebus.EmergencyStatusUpdate{
		Origin:            changebus.Origin{Origin: s.origin},
		ID:                e.ID,
		Revision:          e.Revision,
		OldStatus:         string(old),
		NewStatus:         string(e.Status),
		MatchedDonors:     e.MatchedDonors,
		MatchedFacilities: e.MatchedFacilities,
		ConfirmedDonors:   e.ConfirmedDonors,
		UpdatedAt:         e.UpdatedAt,
	}
	if s.hub != nil && (s.gate == nil || s.gate.Accept(u)) {
		s.hub.Broadcast(ctx, hub.EmergencyRoom(e.ID), hub.EventEmergencyStatusUpdated, changebus.StatusPayload(u))
	}
	s.publish(ctx, changebus.ChannelEmergencyStatusUpdate, u, e.ID)
}

func (s *Service) publish(ctx context.Context, channel string, payload any, emergencyID string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, channel, payload); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "failed to publish change",
			logger.Component("emergency"),
			logger.Channel(channel),
			logger.EmergencyID(emergencyID),
			logger.Error(err),
		)
	}
}

func (s *Service) phase(ctx context.Context, e *Emergency, p Phase, start time.Time, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		logger.Component("emergency"),
		logger.EmergencyID(e.ID),
		logger.Phase(string(p)),
		logger.Duration(s.now().Sub(start)),
	}, attrs...)
	s.log.LogAttrs(ctx, slog.LevelInfo, "emergency "+string(p), attrs...)
}

// DonorAvailability marks a donor available at a location.
type DonorAvailability struct {
	DonorID     string
	Location    geo.Point
	BloodGroup  string
	CountryCode string
	ConnID      string
}

// SetDonorAvailable registers the donor in the presence store and tells
// the region.
func (s *Service) SetDonorAvailable(ctx context.Context, d DonorAvailability) error {
	if s.presence == nil {
		return ErrPresenceDisabled
	}
	d.BloodGroup = strings.ToUpper(strings.TrimSpace(d.BloodGroup))
	if d.DonorID == "" || d.Location.IsZero() || !slices.Contains(BloodGroups, d.BloodGroup) {
		return ErrInvalidDonor
	}
	err := s.presence.SetAvailable(ctx, presence.Entry{
		DonorID:     d.DonorID,
		Location:    d.Location,
		BloodGroup:  d.BloodGroup,
		CountryCode: strings.ToUpper(d.CountryCode),
		Available:   true,
		ConnID:      d.ConnID,
	})
	if err != nil {
		if errors.Is(err, presence.ErrInvalidEntry) {
			return errors.Join(ErrInvalidDonor, err)
		}
		return fmt.Errorf("set donor available: %w", err)
	}
	s.presenceChanged(ctx, d.DonorID, d.CountryCode, true)
	return nil
}

// SetDonorUnavailable removes the donor from the presence store. It is a
// no-op for donors that are not registered.
func (s *Service) SetDonorUnavailable(ctx context.Context, donorID string) error {
	if s.presence == nil {
		return ErrPresenceDisabled
	}
	entry, err := s.presence.Get(ctx, donorID)
	if errors.Is(err, presence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set donor unavailable: %w", err)
	}
	if err := s.presence.SetUnavailable(ctx, donorID); err != nil {
		return fmt.Errorf("set donor unavailable: %w", err)
	}
	s.presenceChanged(ctx, donorID, entry.CountryCode, false)
	return nil
}

// PauseDonor clears the donor's availability but keeps the entry until its
// TTL runs out, still owned by the connection that registered it. It is a
// no-op for donors that are not registered.
func (s *Service) PauseDonor(ctx context.Context, donorID string) error {
	if s.presence == nil {
		return ErrPresenceDisabled
	}
	entry, err := s.presence.Get(ctx, donorID)
	if err == nil {
		err = s.presence.Pause(ctx, donorID)
	}
	if errors.Is(err, presence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pause donor: %w", err)
	}
	s.presenceChanged(ctx, donorID, entry.CountryCode, false)
	return nil
}

func (s *Service) presenceChanged(ctx context.Context, donorID, cc string, available bool) {
	if s.hub == nil || cc == "" {
		return
	}
	s.hub.Broadcast(ctx, hub.RegionRoom(cc), hub.EventDonorPresenceUpdated,
		hub.PresenceUpdate{DonorID: donorID, Available: available})
}

// OnlineDonorCount returns the number of available donors in a country,
// optionally for one blood group.
func (s *Service) OnlineDonorCount(ctx context.Context, countryCode, bloodGroup string) (int, error) {
	if s.presence == nil {
		return 0, ErrPresenceDisabled
	}
	n, err := s.presence.Count(ctx, strings.ToUpper(countryCode), strings.ToUpper(bloodGroup))
	if err != nil {
		return 0, fmt.Errorf("count online donors: %w", err)
	}
	return n, nil
}
