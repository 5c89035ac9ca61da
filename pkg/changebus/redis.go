package changebus

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisListener receives notifications over Redis pub/sub. Channel names
// are prefixed so the bus can share a Redis with other tenants.
type RedisListener struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisListener(rdb redis.UniversalClient, prefix string) *RedisListener {
	return &RedisListener{rdb: rdb, prefix: prefix}
}

func (l *RedisListener) Listen(ctx context.Context, channels []string, fn func(Notification)) error {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = l.prefix + ch
	}

	sub := l.rdb.Subscribe(ctx, names...)
	defer sub.Close()

	// Wait for the subscription confirmation so publishes issued after
	// Listen starts are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Join(ErrListen, err)
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(ErrListen, err)
		}
		ch := msg.Channel[len(l.prefix):]
		fn(Notification{Channel: ch, Payload: []byte(msg.Payload)})
	}
}

// RedisPublisher publishes to the channels RedisListener subscribes to.
type RedisPublisher struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisPublisher(rdb redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) error {
	b, err := encodePayload(channel, payload)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.prefix+channel, b).Err(); err != nil {
		return errors.Join(ErrPublish, err)
	}
	return nil
}
