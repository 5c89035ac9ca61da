package changebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Listener subscribes to channels and calls fn for every message. Listen
// blocks until ctx ends or the underlying connection fails.
type Listener interface {
	Listen(ctx context.Context, channels []string, fn func(Notification)) error
}

// HandlerFunc handles a raw payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// TypedHandlerFunc handles a decoded payload.
type TypedHandlerFunc[T any] func(ctx context.Context, payload T) error

// Bus dispatches notifications to per-channel handlers.
type Bus struct {
	listener Listener
	cfg      Config
	log      *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc

	connected atomic.Bool
}

type Option func(*Bus)

func WithConfig(cfg Config) Option {
	return func(b *Bus) {
		if cfg.ReconnectDelay <= 0 {
			cfg.ReconnectDelay = b.cfg.ReconnectDelay
		}
		if cfg.HandlerTimeout <= 0 {
			cfg.HandlerTimeout = b.cfg.HandlerTimeout
		}
		if cfg.LedgerSize <= 0 {
			cfg.LedgerSize = b.cfg.LedgerSize
		}
		b.cfg = cfg
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

func New(l Listener, opts ...Option) *Bus {
	b := &Bus{
		listener: l,
		cfg:      DefaultConfig(),
		log:      slog.Default(),
		handlers: make(map[string][]HandlerFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle registers a raw handler. Several handlers per channel run in
// registration order.
func (b *Bus) Handle(channel string, h HandlerFunc) {
	if !IsKnownChannel(channel) {
		panic("changebus: handler for unknown channel " + channel)
	}
	b.mu.Lock()
	b.handlers[channel] = append(b.handlers[channel], h)
	b.mu.Unlock()
}

// On registers a handler that receives the payload decoded into T.
func On[T any](b *Bus, channel string, fn TypedHandlerFunc[T]) {
	b.Handle(channel, func(ctx context.Context, payload json.RawMessage) error {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return errors.Join(ErrDecodePayload, err)
		}
		return fn(ctx, v)
	})
}

// Connected reports whether Run is inside a listen attempt, i.e. not
// waiting out a reconnect delay.
func (b *Bus) Connected() bool { return b.connected.Load() }

// Run listens until ctx is cancelled. A lost connection is logged and
// retried after Config.ReconnectDelay.
func (b *Bus) Run(ctx context.Context) error {
	for {
		b.connected.Store(true)
		err := b.listener.Listen(ctx, Channels(), func(n Notification) {
			b.Dispatch(ctx, n)
		})
		b.connected.Store(false)

		if ctx.Err() != nil {
			return nil
		}
		b.log.LogAttrs(ctx, slog.LevelWarn, "change listener disconnected, reconnecting",
			logger.Component("changebus"),
			logger.Duration(b.cfg.ReconnectDelay),
			logger.Error(err),
		)

		t := time.NewTimer(b.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Dispatch runs the handlers of n.Channel. Handler errors and panics are
// logged and never stop the bus.
func (b *Bus) Dispatch(ctx context.Context, n Notification) {
	b.mu.RLock()
	hs := b.handlers[n.Channel]
	b.mu.RUnlock()

	if len(hs) == 0 {
		if !IsKnownChannel(n.Channel) {
			b.log.LogAttrs(ctx, slog.LevelWarn, "notification on unknown channel",
				logger.Component("changebus"),
				logger.Channel(n.Channel),
			)
		}
		return
	}

	for _, h := range hs {
		if err := b.run(ctx, h, n); err != nil {
			b.log.LogAttrs(ctx, slog.LevelError, "change handler failed",
				logger.Component("changebus"),
				logger.Channel(n.Channel),
				logger.Error(err),
			)
		}
	}
}

func (b *Bus) run(ctx context.Context, h HandlerFunc, n Notification) (err error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, json.RawMessage(n.Payload))
}
