package changebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxNotifyPayload is the PostgreSQL NOTIFY payload limit.
const maxNotifyPayload = 8000

// PgListener receives notifications via LISTEN on a dedicated connection
// taken out of the pool.
type PgListener struct {
	pool *pgxpool.Pool
}

func NewPgListener(pool *pgxpool.Pool) *PgListener {
	return &PgListener{pool: pool}
}

func (l *PgListener) Listen(ctx context.Context, channels []string, fn func(Notification)) error {
	pc, err := l.pool.Acquire(ctx)
	if err != nil {
		return errors.Join(ErrListen, err)
	}
	// The session carries LISTEN state, so it never goes back to the pool.
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	for _, ch := range channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return errors.Join(ErrListen, fmt.Errorf("listen %s: %w", ch, err))
		}
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(ErrListen, err)
		}
		fn(Notification{Channel: n.Channel, Payload: []byte(n.Payload)})
	}
}

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx. Publishing
// inside a transaction delivers the notification only on commit.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgPublisher sends notifications with pg_notify.
type PgPublisher struct {
	db Execer
}

func NewPgPublisher(db Execer) *PgPublisher {
	return &PgPublisher{db: db}
}

func (p *PgPublisher) Publish(ctx context.Context, channel string, payload any) error {
	b, err := encodePayload(channel, payload)
	if err != nil {
		return err
	}
	if len(b) >= maxNotifyPayload {
		return fmt.Errorf("%w: %d bytes on %s", ErrPayloadTooLarge, len(b), channel)
	}
	if _, err := p.db.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(b)); err != nil {
		return errors.Join(ErrPublish, err)
	}
	return nil
}

func encodePayload(channel string, payload any) ([]byte, error) {
	if !IsKnownChannel(channel) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrPublish, err)
	}
	return b, nil
}
