package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/modules/api"
	"github.com/dmitrymomot/pulse/pkg/dispatch"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSMSRouter(t *testing.T) {
	t.Parallel()

	t.Run("log provider by default", func(t *testing.T) {
		t.Parallel()
		var c configs
		c.app.SMSProvider = dispatch.ProviderLog
		r, err := smsRouter(c, discard())
		require.NoError(t, err)
		assert.NoError(t, r.Send(context.Background(), "IN", "+919800000000", "test"))
	})

	t.Run("routes file needs configured providers", func(t *testing.T) {
		t.Parallel()
		var c configs
		c.app.SMSProvider = dispatch.ProviderLog
		c.dispatch.SMSRoutesFile = "sms_routes.example.yaml"
		_, err := smsRouter(c, discard())
		assert.ErrorIs(t, err, dispatch.ErrUnknownProvider)

		c.twilio = dispatch.TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+10000000000"}
		c.msg91 = dispatch.MSG91Config{AuthKey: "key"}
		r, err := smsRouter(c, discard())
		require.NoError(t, err)
		err = r.Send(context.Background(), "NP", "+9779800000000", "test")
		assert.ErrorIs(t, err, dispatch.ErrSMSDisabled)
	})

	t.Run("missing routes file", func(t *testing.T) {
		t.Parallel()
		var c configs
		c.dispatch.SMSRoutesFile = filepath.Join(t.TempDir(), "absent.yaml")
		_, err := smsRouter(c, discard())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestPushSenderFallsBackToLog(t *testing.T) {
	t.Parallel()
	s, err := pushSender(context.Background(), dispatch.FCMConfig{}, discard())
	require.NoError(t, err)
	assert.IsType(t, &dispatch.LogSender{}, s)
}

func TestSharedLimiter(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := dispatch.Config{RateLimit: 10, RatePeriod: time.Minute, SharedLimiter: true, RedisPrefix: "t:"}
	l, err := sharedLimiter(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &dispatch.SharedLimiter{}, l)
	require.NoError(t, l.Wait(context.Background()))
	assert.True(t, mr.Exists("t:ratelimit:deliveries"))

	cfg.SharedLimiter = false
	l, err = sharedLimiter(cfg, rdb)
	require.NoError(t, err)
	assert.Nil(t, l)

	cfg.SharedLimiter, cfg.RateLimit = true, 0
	l, err = sharedLimiter(cfg, rdb)
	require.NoError(t, err)
	assert.Nil(t, l)

	cfg.RateLimit, cfg.RatePeriod = 10, 0
	_, err = sharedLimiter(cfg, rdb)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidInterval)
}

func TestEmergencyLimiter(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := emergencyLimiter(api.Config{EmergencyLimit: 1, EmergencyWindow: time.Hour, RedisPrefix: "a:"}, rdb)
	require.NoError(t, err)
	ctx := context.Background()
	res, err := l.Allow(ctx, "emergencies:u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = l.Allow(ctx, "emergencies:u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	l, err = emergencyLimiter(api.Config{}, rdb)
	require.NoError(t, err)
	assert.Nil(t, l)
}
