package api

import "time"

// Config holds the REST API limits.
type Config struct {
	// EmergencyLimit is how many emergencies one requester may raise per
	// EmergencyWindow. Zero disables the limit.
	EmergencyLimit  int           `env:"API_EMERGENCY_LIMIT" envDefault:"3"`
	EmergencyWindow time.Duration `env:"API_EMERGENCY_WINDOW" envDefault:"24h"`
	RedisPrefix     string        `env:"API_REDIS_PREFIX" envDefault:"pulse:api:"`
}
