package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/pulse/modules/api"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

// pushSender uses FCM when a project is configured and logs otherwise.
func pushSender(ctx context.Context, cfg dispatch.FCMConfig, log *slog.Logger) (dispatch.PushSender, error) {
	if cfg.ProjectID == "" {
		log.LogAttrs(ctx, slog.LevelWarn, "FCM not configured, push notifications are logged only",
			logger.Component("dispatch"))
		return dispatch.NewLogSender(log), nil
	}
	s, err := dispatch.NewFCMSender(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("fcm sender: %w", err)
	}
	return s, nil
}

// smsRouter registers every configured provider and loads the per-country
// routing table, falling back to defaultProvider for all countries.
func smsRouter(c configs, log *slog.Logger) (*dispatch.SMSRouter, error) {
	senders := map[string]dispatch.SMSSender{
		dispatch.ProviderLog: dispatch.NewLogSender(log),
	}
	if c.twilio.Enabled() {
		senders[dispatch.ProviderTwilio] = dispatch.NewTwilioSender(c.twilio)
	}
	if c.msg91.Enabled() {
		senders[dispatch.ProviderMSG91] = dispatch.NewMSG91Sender(c.msg91)
	}

	routes := dispatch.DefaultRoutes(c.app.SMSProvider)
	if c.dispatch.SMSRoutesFile != "" {
		var err error
		if routes, err = dispatch.LoadRoutes(c.dispatch.SMSRoutesFile); err != nil {
			return nil, err
		}
	}
	return dispatch.NewSMSRouter(routes, senders)
}

// sharedLimiter returns a Redis token bucket so the rate ceiling holds
// across processes. nil keeps the worker's in-process limiter.
func sharedLimiter(c dispatch.Config, rdb redis.UniversalClient) (dispatch.Limiter, error) {
	if c.RateLimit <= 0 || !c.SharedLimiter {
		return nil, nil
	}
	tb, err := ratelimit.NewTokenBucket(ratelimit.NewRedisStore(rdb, c.RedisPrefix), c.RateLimit, c.RatePeriod)
	if err != nil {
		return nil, fmt.Errorf("dispatch limiter: %w", err)
	}
	return dispatch.NewSharedLimiter(tb, "deliveries"), nil
}

// emergencyLimiter caps emergency creation per requester. nil disables it.
func emergencyLimiter(c api.Config, rdb redis.UniversalClient) (ratelimit.Limiter, error) {
	if c.EmergencyLimit <= 0 {
		return nil, nil
	}
	tb, err := ratelimit.NewTokenBucket(ratelimit.NewRedisStore(rdb, c.RedisPrefix), c.EmergencyLimit, c.EmergencyWindow)
	if err != nil {
		return nil, fmt.Errorf("emergency limiter: %w", err)
	}
	return tb, nil
}
