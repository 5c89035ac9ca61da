package changebus_test

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrymomot/pulse/pkg/changebus"
)

type broadcast struct {
	Room    string
	Event   string
	Payload map[string]any
}

type recorder struct {
	mu  sync.Mutex
	got []broadcast
}

func (r *recorder) Broadcast(_ context.Context, room, event string, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := payload.(map[string]any)
	r.got = append(r.got, broadcast{Room: room, Event: event, Payload: p})
	return 1
}

func (r *recorder) BroadcastAll(ctx context.Context, event string, payload any) int {
	return r.Broadcast(ctx, "*", event, payload)
}

func (r *recorder) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.got...)
}

// chanListener delivers notifications pushed into feed. Each entry of fail
// makes one Listen call return that error immediately.
type chanListener struct {
	feed chan changebus.Notification

	mu    sync.Mutex
	fail  []error
	calls int
}

func newChanListener(fail ...error) *chanListener {
	return &chanListener{feed: make(chan changebus.Notification, 16), fail: fail}
}

var errConnLost = errors.New("connection lost")

func (l *chanListener) Listen(ctx context.Context, _ []string, fn func(changebus.Notification)) error {
	l.mu.Lock()
	l.calls++
	if len(l.fail) > 0 {
		err := l.fail[0]
		l.fail = l.fail[1:]
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.feed:
			fn(n)
		}
	}
}

func (l *chanListener) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
