package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/dmitrymomot/pulse/pkg/hub"
)

type fakeTransport struct {
	in     chan []byte
	closed chan struct{}
	gate   chan struct{}

	mu     sync.Mutex
	frames []hub.Envelope
	reason hub.CloseReason
	once   sync.Once
}

func newTransport() *fakeTransport {
	return &fakeTransport{in: make(chan []byte, 16), closed: make(chan struct{})}
}

// newBlockedTransport never completes a write until release is called.
func newBlockedTransport() *fakeTransport {
	t := newTransport()
	t.gate = make(chan struct{})
	return t
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-t.in:
		return b, nil
	case <-t.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(ctx context.Context, frame []byte) error {
	if t.gate != nil {
		select {
		case <-t.gate:
		case <-t.closed:
			return io.EOF
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var env hub.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	t.mu.Lock()
	t.frames = append(t.frames, env)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close(reason hub.CloseReason) error {
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.mu.Unlock()
		close(t.closed)
	})
	return nil
}

func (t *fakeTransport) send(event string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(hub.Envelope{Event: event, Data: raw})
	t.in <- frame
}

func (t *fakeTransport) events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.frames))
	for _, f := range t.frames {
		out = append(out, f.Event)
	}
	return out
}

func (t *fakeTransport) find(event string) (hub.Envelope, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.frames {
		if f.Event == event {
			return f, true
		}
	}
	return hub.Envelope{}, false
}

func (t *fakeTransport) closeReason() hub.CloseReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

type staticAuth map[string]hub.Identity

func (a staticAuth) Authenticate(_ context.Context, token string) (hub.Identity, error) {
	id, ok := a[token]
	if !ok {
		return hub.Identity{}, hub.ErrUnauthorized
	}
	return id, nil
}

var errNoEmergency = errors.New("emergency not found")

type stubActions struct {
	mu        sync.Mutex
	snapshots map[string]any
	responses []hub.RespondRequest
	presence  []hub.PresenceRequest
}

func (a *stubActions) Snapshot(_ context.Context, id string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.snapshots[id]
	if !ok {
		return nil, errNoEmergency
	}
	return s, nil
}

func (a *stubActions) Respond(_ context.Context, who hub.Identity, req hub.RespondRequest) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, req)
	return map[string]string{"status": "confirmed", "donorId": who.UserID}, nil
}

func (a *stubActions) UpdatePresence(_ context.Context, _ hub.Identity, _ string, req hub.PresenceRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.presence = append(a.presence, req)
	return nil
}

var (
	donorIdentity     = hub.Identity{UserID: "donor-1", CountryCode: "IN", Roles: []string{"donor"}, BloodGroup: "O+"}
	requesterIdentity = hub.Identity{UserID: "req-1", CountryCode: "IN", Roles: []string{"user"}}
	usIdentity        = hub.Identity{UserID: "us-1", CountryCode: "US"}
)

func testAuth() staticAuth {
	return staticAuth{
		"donor":     donorIdentity,
		"requester": requesterIdentity,
		"us":        usIdentity,
	}
}

func countEvents(t *fakeTransport, event string) int {
	n := 0
	for _, e := range t.events() {
		if e == event {
			n++
		}
	}
	return n
}
