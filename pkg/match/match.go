package match

import (
	"context"
	"time"

	"github.com/dmitrymomot/pulse/pkg/geo"
)

// Source tells where a candidate came from.
type Source string

const (
	SourceLive    Source = "live"
	SourceDurable Source = "durable"
)

// Candidate is one donor who may answer an emergency. ConnID is set only
// for donors with a live connection; the rest are reached by notifications.
type Candidate struct {
	DonorID    string  `json:"donorId"`
	DistanceKm float64 `json:"distanceKm"`
	ConnID     string  `json:"connId,omitempty"`
	Source     Source  `json:"source"`
}

// Outcome reports whether the primary, live path produced the result.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
)

func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// Result is the typed answer of FindCandidates. Err is set when no source
// could answer; Candidates is then empty and Outcome is OutcomeDegraded.
type Result struct {
	Candidates []Candidate
	Outcome    Outcome
	Err        error
}

func (r Result) Degraded() bool { return r.Outcome == OutcomeDegraded }

// Query describes a donor search. MaxResults <= 0 leaves the live path
// uncapped and uses the fallback limit on the durable path.
type Query struct {
	Center      geo.Point
	RadiusKm    float64
	BloodGroup  string
	CountryCode string
	MaxResults  int
}

// DonorQuery is passed to the durable fallback. Donors whose last donation
// is more recent than DonatedBefore are not eligible.
type DonorQuery struct {
	Center        geo.Point
	RadiusKm      float64
	BloodGroup    string
	CountryCode   string
	DonatedBefore time.Time
	Limit         int
}

// DonorSource is the durable donor table.
type DonorSource interface {
	NearbyEligibleDonors(ctx context.Context, q DonorQuery) ([]Candidate, error)
}

// Facility is a hospital or blood bank able to help with an emergency.
type Facility struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Location         geo.Point `json:"location"`
	EmergencyCapable bool      `json:"emergency"`
	Phone            string    `json:"phone,omitempty"`
	DistanceKm       float64   `json:"distanceKm"`
}

type FacilityQuery struct {
	Center      geo.Point
	RadiusKm    float64
	CountryCode string
	Limit       int
}

// FacilitySource returns active blood banks and emergency-capable hospitals.
type FacilitySource interface {
	NearbyFacilities(ctx context.Context, q FacilityQuery) ([]Facility, error)
}

type Config struct {
	DonorRadiusKm    float64       `env:"MATCH_DONOR_RADIUS_KM" envDefault:"30"`
	FacilityRadiusKm float64       `env:"MATCH_FACILITY_RADIUS_KM" envDefault:"50"`
	FallbackLimit    int           `env:"MATCH_FALLBACK_LIMIT" envDefault:"50"`
	FacilityLimit    int           `env:"MATCH_FACILITY_LIMIT" envDefault:"20"`
	DonationInterval time.Duration `env:"MATCH_DONATION_INTERVAL" envDefault:"1344h"`
}

func DefaultConfig() Config {
	return Config{
		DonorRadiusKm:    30,
		FacilityRadiusKm: 50,
		FallbackLimit:    50,
		FacilityLimit:    20,
		DonationInterval: 56 * 24 * time.Hour,
	}
}
