package main

import (
	"errors"

	"github.com/dmitrymomot/pulse/modules/api"
	"github.com/dmitrymomot/pulse/pkg/changebus"
	"github.com/dmitrymomot/pulse/pkg/config"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/httpserver"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/match"
	"github.com/dmitrymomot/pulse/pkg/pg"
	"github.com/dmitrymomot/pulse/pkg/presence"
	"github.com/dmitrymomot/pulse/pkg/redis"
)

type appConfig struct {
	Env            string `env:"APP_ENV" envDefault:"development"`
	Name           string `env:"APP_NAME" envDefault:"pulse"`
	LogLevel       string `env:"LOG_LEVEL"`
	SMSProvider    string `env:"SMS_DEFAULT_PROVIDER" envDefault:"log"`
	SkipMigrations bool   `env:"PG_SKIP_MIGRATIONS"`
}

type configs struct {
	app       appConfig
	pg        pg.Config
	redis     redis.Config
	http      httpserver.Config
	api       api.Config
	hub       hub.Config
	presence  presence.Config
	match     match.Config
	changebus changebus.Config
	dispatch  dispatch.Config
	fcm       dispatch.FCMConfig
	twilio    dispatch.TwilioConfig
	msg91     dispatch.MSG91Config
	emergency emergency.Config
}

func loadConfigs() (configs, error) {
	var c configs
	err := errors.Join(
		config.Load(&c.app),
		config.Load(&c.pg),
		config.Load(&c.redis),
		config.Load(&c.http),
		config.Load(&c.api),
		config.Load(&c.hub),
		config.Load(&c.presence),
		config.Load(&c.match),
		config.Load(&c.changebus),
		config.Load(&c.dispatch),
		config.Load(&c.fcm),
		config.Load(&c.twilio),
		config.Load(&c.msg91),
		config.Load(&c.emergency),
	)
	if err != nil {
		return configs{}, err
	}
	if c.hub.JWTSecret == "" {
		return configs{}, errors.New("HUB_JWT_SECRET is required")
	}
	return c, nil
}
