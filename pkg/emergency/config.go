package emergency

import "time"

type Config struct {
	// DonorRadiusKm and FacilityRadiusKm are the search radii around the
	// hospital.
	DonorRadiusKm    float64 `env:"EMERGENCY_DONOR_RADIUS_KM" envDefault:"30"`
	FacilityRadiusKm float64 `env:"EMERGENCY_FACILITY_RADIUS_KM" envDefault:"50"`
	// MaxCandidates caps live candidates; 0 keeps every donor in radius.
	MaxCandidates int `env:"EMERGENCY_MAX_CANDIDATES" envDefault:"0"`
	// MatchTimeout bounds the matching step so a slow store only degrades
	// the result.
	MatchTimeout  time.Duration `env:"EMERGENCY_MATCH_TIMEOUT" envDefault:"3s"`
	NotifyTimeout time.Duration `env:"EMERGENCY_NOTIFY_TIMEOUT" envDefault:"5s"`
}

func DefaultConfig() Config {
	return Config{
		DonorRadiusKm:    30,
		FacilityRadiusKm: 50,
		MatchTimeout:     3 * time.Second,
		NotifyTimeout:    5 * time.Second,
	}
}
