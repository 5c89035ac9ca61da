package presence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/pulse/pkg/geo"
)

// Entry is the live availability record of one donor.
type Entry struct {
	DonorID     string    `json:"donorId"`
	Location    geo.Point `json:"location"`
	BloodGroup  string    `json:"bloodGroup"`
	CountryCode string    `json:"countryCode"`
	Available   bool      `json:"available"`
	ConnID      string    `json:"connId,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (e Entry) validate() error {
	if e.DonorID == "" || e.BloodGroup == "" || len(e.CountryCode) != 2 {
		return ErrInvalidEntry
	}
	if err := e.Location.Validate(); err != nil {
		return ErrInvalidEntry
	}
	return nil
}

// NearbyQuery selects available donors around Center. BloodGroup is optional;
// Limit <= 0 means no cap besides the radius.
type NearbyQuery struct {
	Center      geo.Point
	RadiusKm    float64
	CountryCode string
	BloodGroup  string
	Limit       int
}

// Nearby is an Entry annotated with its distance from the query center.
type Nearby struct {
	Entry
	DistanceKm float64 `json:"distanceKm"`
}

// Store is the presence registry shared by every process.
//
// Entries expire after the configured TTL unless refreshed by SetAvailable
// or Heartbeat. QueryNearby never returns an entry whose Available flag is
// false, even while it is still indexed.
type Store interface {
	// SetAvailable upserts the entry with Available=true and resets its TTL.
	// Repeating the call with identical arguments leaves a single index member.
	SetAvailable(ctx context.Context, e Entry) error
	// SetUnavailable removes the donor from every index. No-op when absent.
	SetUnavailable(ctx context.Context, donorID string) error
	// Pause clears the Available flag but keeps the donor indexed until the TTL
	// runs out, so a quick resume does not need a new location fix.
	Pause(ctx context.Context, donorID string) error
	QueryNearby(ctx context.Context, q NearbyQuery) ([]Nearby, error)
	Get(ctx context.Context, donorID string) (Entry, error)
	// Count returns the number of available donors in a country, optionally
	// narrowed to one blood group.
	Count(ctx context.Context, countryCode, bloodGroup string) (int, error)
	Heartbeat(ctx context.Context, donorID string) error
	// Release removes the entry only if it is still owned by connID. It
	// reports whether an entry was removed. An empty connID matches entries
	// registered without a connection.
	Release(ctx context.Context, donorID, connID string) (bool, error)
}

type Config struct {
	TTL       time.Duration `env:"PRESENCE_TTL" envDefault:"30m"`
	OpTimeout time.Duration `env:"PRESENCE_OP_TIMEOUT" envDefault:"300ms"`
}

const (
	DefaultTTL       = 30 * time.Minute
	DefaultOpTimeout = 300 * time.Millisecond
)

type options struct {
	ttl       time.Duration
	opTimeout time.Duration
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*options)

func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithOpTimeout bounds every store round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.opTimeout = d
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(o *options) {
		WithTTL(cfg.TTL)(o)
		WithOpTimeout(cfg.OpTimeout)(o)
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		ttl:       DefaultTTL,
		opTimeout: DefaultOpTimeout,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// indexedIn reports whether the entry belongs to the country index cc and,
// when bg is set, to that blood group index.
func (e Entry) indexedIn(cc, bg string) bool {
	return e.CountryCode == cc && (bg == "" || e.BloodGroup == bg)
}

func normalize(e Entry) Entry {
	e.CountryCode = strings.ToUpper(strings.TrimSpace(e.CountryCode))
	e.BloodGroup = strings.ToUpper(strings.TrimSpace(e.BloodGroup))
	return e
}
