package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle stage of a connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// CloseReason is passed to Transport.Close.
type CloseReason string

const (
	ReasonNormal       CloseReason = "normal"
	ReasonUnauthorized CloseReason = "unauthorized"
	ReasonSlowConsumer CloseReason = "slow consumer"
	ReasonWriteFailed  CloseReason = "write failed"
	ReasonShutdown     CloseReason = "server shutdown"
)

// Transport is one bidirectional client channel, e.g. a WebSocket.
// Write is only called from the connection's writer goroutine and Read
// only from its reader loop.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close(reason CloseReason) error
}

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Conn is a live connection registered with a Hub.
type Conn struct {
	id        string
	identity  Identity
	transport Transport
	state     atomic.Int32

	// rooms is guarded by Hub.mu.
	rooms map[string]struct{}

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) Identity() Identity { return c.identity }
func (c *Conn) State() State       { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// enqueue never blocks. It reports false when the queue is full or the
// connection is gone.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) writeLoop(h *Hub) {
	defer h.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
			err := c.transport.Write(ctx, frame)
			cancel()
			if err != nil {
				go h.disconnect(c, ReasonWriteFailed)
				return
			}
		}
	}
}

// Config tunes connection handling.
type Config struct {
	JWTSecret      string        `env:"HUB_JWT_SECRET"`
	JWTIssuer      string        `env:"HUB_JWT_ISSUER"`
	DefaultCountry string        `env:"HUB_DEFAULT_COUNTRY" envDefault:"IN"`
	QueueSize      int           `env:"HUB_QUEUE_SIZE" envDefault:"64"`
	WriteTimeout   time.Duration `env:"HUB_WRITE_TIMEOUT" envDefault:"5s"`
	ReleaseTimeout time.Duration `env:"HUB_RELEASE_TIMEOUT" envDefault:"2s"`
	OriginPatterns []string      `env:"HUB_ORIGIN_PATTERNS" envSeparator:","`
}
