package changebus

import "time"

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config controls listening and relaying.
type Config struct {
	Backend        string        `env:"CHANGEBUS_BACKEND" envDefault:"postgres"`
	ReconnectDelay time.Duration `env:"CHANGEBUS_RECONNECT_DELAY" envDefault:"5s"`
	HandlerTimeout time.Duration `env:"CHANGEBUS_HANDLER_TIMEOUT" envDefault:"5s"`
	LedgerSize     int           `env:"CHANGEBUS_LEDGER_SIZE" envDefault:"10000"`
	RedisPrefix    string        `env:"CHANGEBUS_REDIS_PREFIX" envDefault:"pulse:"`
}

func DefaultConfig() Config {
	return Config{
		Backend:        BackendPostgres,
		ReconnectDelay: 5 * time.Second,
		HandlerTimeout: 5 * time.Second,
		LedgerSize:     10000,
		RedisPrefix:    "pulse:",
	}
}
