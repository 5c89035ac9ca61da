package dispatch

import "time"

// Config holds the configuration for notification delivery.
type Config struct {
	Concurrency    int           `env:"DISPATCH_CONCURRENCY" envDefault:"10"`
	RateLimit      int           `env:"DISPATCH_RATE_LIMIT" envDefault:"100"`
	RatePeriod     time.Duration `env:"DISPATCH_RATE_PERIOD" envDefault:"1m"`
	MaxAttempts    int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	BackoffInitial time.Duration `env:"DISPATCH_BACKOFF_INITIAL" envDefault:"2s"`
	BackoffMax     time.Duration `env:"DISPATCH_BACKOFF_MAX" envDefault:"1m"`
	AttemptTimeout time.Duration `env:"DISPATCH_ATTEMPT_TIMEOUT" envDefault:"30s"`
	PollInterval   time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"500ms"`
	LeaseTimeout   time.Duration `env:"DISPATCH_LEASE_TIMEOUT" envDefault:"2m"`
	SMSDelay       time.Duration `env:"DISPATCH_SMS_DELAY" envDefault:"5s"`
	CompletedTTL   time.Duration `env:"DISPATCH_COMPLETED_TTL" envDefault:"1h"`
	FailedTTL      time.Duration `env:"DISPATCH_FAILED_TTL" envDefault:"24h"`
	RedisPrefix    string        `env:"DISPATCH_REDIS_PREFIX" envDefault:"pulse:dispatch:"`
	SMSRoutesFile  string        `env:"DISPATCH_SMS_ROUTES_FILE"`
	SharedLimiter  bool          `env:"DISPATCH_SHARED_LIMITER" envDefault:"true"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		RateLimit:      100,
		RatePeriod:     time.Minute,
		MaxAttempts:    3,
		BackoffInitial: 2 * time.Second,
		BackoffMax:     time.Minute,
		AttemptTimeout: 30 * time.Second,
		PollInterval:   500 * time.Millisecond,
		LeaseTimeout:   2 * time.Minute,
		SMSDelay:       5 * time.Second,
		CompletedTTL:   time.Hour,
		FailedTTL:      24 * time.Hour,
		RedisPrefix:    "pulse:dispatch:",
		SharedLimiter:  true,
	}
}

// FCMConfig configures the FCM HTTP v1 push sender.
type FCMConfig struct {
	ProjectID       string        `env:"FCM_PROJECT_ID"`
	CredentialsFile string        `env:"FCM_CREDENTIALS_FILE"`
	BaseURL         string        `env:"FCM_BASE_URL" envDefault:"https://fcm.googleapis.com"`
	Timeout         time.Duration `env:"FCM_TIMEOUT" envDefault:"10s"`
}

// TwilioConfig configures the Twilio SMS sender.
type TwilioConfig struct {
	AccountSID string        `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string        `env:"TWILIO_AUTH_TOKEN"`
	FromNumber string        `env:"TWILIO_FROM_NUMBER"`
	BaseURL    string        `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com"`
	Timeout    time.Duration `env:"TWILIO_TIMEOUT" envDefault:"10s"`
}

func (c TwilioConfig) Enabled() bool { return c.AccountSID != "" && c.AuthToken != "" }

// MSG91Config configures the MSG91 SMS sender.
type MSG91Config struct {
	AuthKey  string        `env:"MSG91_AUTH_KEY"`
	SenderID string        `env:"MSG91_SENDER_ID" envDefault:"PULSE"`
	Route    string        `env:"MSG91_ROUTE" envDefault:"4"`
	Country  string        `env:"MSG91_COUNTRY" envDefault:"91"`
	BaseURL  string        `env:"MSG91_BASE_URL" envDefault:"https://api.msg91.com"`
	Timeout  time.Duration `env:"MSG91_TIMEOUT" envDefault:"10s"`
}

func (c MSG91Config) Enabled() bool { return c.AuthKey != "" }
