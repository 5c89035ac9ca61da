package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var echoScript = redis.NewScript(`return ARGV[1]`)

// Healthcheck pings the server and runs a one-line script. It fails when
// EVAL is disabled.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		got, err := echoScript.Run(ctx, client, nil, "ok").Text()
		if err != nil || got != "ok" {
			return errors.Join(ErrHealthcheckFailed, ErrScriptingDisabled, err)
		}
		return nil
	}
}
