package match

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/presence"
)

// Engine resolves candidate donors and facilities for an emergency.
type Engine struct {
	live       presence.Store
	donors     DonorSource
	facilities FacilitySource
	cfg        Config
	intervals  map[string]time.Duration
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.DonorRadiusKm <= 0 {
			cfg.DonorRadiusKm = def.DonorRadiusKm
		}
		if cfg.FacilityRadiusKm <= 0 {
			cfg.FacilityRadiusKm = def.FacilityRadiusKm
		}
		if cfg.FallbackLimit <= 0 {
			cfg.FallbackLimit = def.FallbackLimit
		}
		if cfg.FacilityLimit <= 0 {
			cfg.FacilityLimit = def.FacilityLimit
		}
		if cfg.DonationInterval <= 0 {
			cfg.DonationInterval = def.DonationInterval
		}
		e.cfg = cfg
	}
}

// WithCountryIntervals overrides the minimum time between donations per
// country code, e.g. {"US": 56 * 24h, "GB": 84 * 24h}.
func WithCountryIntervals(m map[string]time.Duration) Option {
	return func(e *Engine) {
		for cc, d := range m {
			e.intervals[strings.ToUpper(cc)] = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New wires the live store with the durable sources. donors and facilities
// may be nil; the engine then runs without fallback or facility lookup.
func New(live presence.Store, donors DonorSource, facilities FacilitySource, opts ...Option) *Engine {
	e := &Engine{
		live:       live,
		donors:     donors,
		facilities: facilities,
		cfg:        DefaultConfig(),
		intervals:  map[string]time.Duration{},
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// FindCandidates asks the presence store first. Only when it fails does the
// engine query the durable donor table, and the result is then marked
// degraded. Candidates are sorted by distance, nearest first.
func (e *Engine) FindCandidates(ctx context.Context, q Query) Result {
	if q.RadiusKm <= 0 {
		q.RadiusKm = e.cfg.DonorRadiusKm
	}
	q.CountryCode = strings.ToUpper(q.CountryCode)
	if q.Center.Validate() != nil || q.CountryCode == "" {
		return Result{Outcome: OutcomeOK, Err: ErrInvalidQuery}
	}

	liveErr := errors.New("presence store not configured")
	if e.live != nil {
		nearby, err := e.live.QueryNearby(ctx, presence.NearbyQuery{
			Center:      q.Center,
			RadiusKm:    q.RadiusKm,
			CountryCode: q.CountryCode,
			BloodGroup:  q.BloodGroup,
			Limit:       q.MaxResults,
		})
		if err == nil {
			return Result{Candidates: fromPresence(nearby), Outcome: OutcomeOK}
		}
		liveErr = err
	}

	e.log.LogAttrs(ctx, slog.LevelWarn, "live presence query failed, using durable donors",
		logger.Component("match"),
		logger.Error(liveErr),
	)

	if e.donors == nil {
		return Result{Outcome: OutcomeDegraded, Err: errors.Join(ErrNoFallback, liveErr)}
	}

	limit := e.cfg.FallbackLimit
	if q.MaxResults > 0 && q.MaxResults < limit {
		limit = q.MaxResults
	}
	found, err := e.donors.NearbyEligibleDonors(ctx, DonorQuery{
		Center:        q.Center,
		RadiusKm:      q.RadiusKm,
		BloodGroup:    q.BloodGroup,
		CountryCode:   q.CountryCode,
		DonatedBefore: e.now().Add(-e.interval(q.CountryCode)),
		Limit:         limit,
	})
	if err != nil {
		e.log.LogAttrs(ctx, slog.LevelError, "durable donor query failed",
			logger.Component("match"),
			logger.Error(err),
		)
		return Result{Outcome: OutcomeDegraded, Err: errors.Join(ErrMatchUnavailable, liveErr, err)}
	}

	for i := range found {
		found[i].Source = SourceDurable
		found[i].ConnID = ""
	}
	sortCandidates(found)
	if len(found) > limit {
		found = found[:limit]
	}
	return Result{Candidates: found, Outcome: OutcomeDegraded}
}

// FindFacilities returns blood banks and emergency-capable hospitals within
// the radius. At equal distance emergency-capable facilities come first.
func (e *Engine) FindFacilities(ctx context.Context, q FacilityQuery) ([]Facility, error) {
	if q.RadiusKm <= 0 {
		q.RadiusKm = e.cfg.FacilityRadiusKm
	}
	if q.Limit <= 0 {
		q.Limit = e.cfg.FacilityLimit
	}
	q.CountryCode = strings.ToUpper(q.CountryCode)
	if q.Center.Validate() != nil || q.CountryCode == "" {
		return nil, ErrInvalidQuery
	}
	if e.facilities == nil {
		return nil, nil
	}

	found, err := e.facilities.NearbyFacilities(ctx, q)
	if err != nil {
		return nil, errors.Join(ErrFacilitySource, err)
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].DistanceKm != found[j].DistanceKm {
			return found[i].DistanceKm < found[j].DistanceKm
		}
		return found[i].EmergencyCapable && !found[j].EmergencyCapable
	})
	if len(found) > q.Limit {
		found = found[:q.Limit]
	}
	return found, nil
}

func (e *Engine) interval(cc string) time.Duration {
	if d, ok := e.intervals[cc]; ok && d > 0 {
		return d
	}
	return e.cfg.DonationInterval
}

func fromPresence(nearby []presence.Nearby) []Candidate {
	out := make([]Candidate, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, Candidate{
			DonorID:    n.DonorID,
			DistanceKm: n.DistanceKm,
			ConnID:     n.ConnID,
			Source:     SourceLive,
		})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].DistanceKm < c[j].DistanceKm })
}
