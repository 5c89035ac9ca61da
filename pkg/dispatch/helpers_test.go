package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/dispatch"
)

var errGatewayDown = errors.New("gateway down")

// pushFunc adapts a function to dispatch.PushSender and records call times.
type pushFunc struct {
	mu    sync.Mutex
	calls []time.Time
	fn    func(token string) error
}

func (p *pushFunc) SendPush(_ context.Context, token string, _ dispatch.Message) error {
	p.mu.Lock()
	p.calls = append(p.calls, time.Now())
	p.mu.Unlock()
	return p.fn(token)
}

func (p *pushFunc) callTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.calls...)
}

type smsRecorder struct {
	mu   sync.Mutex
	sent []string
}

func (s *smsRecorder) SendSMS(_ context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, phone+"|"+text)
	return nil
}

func (s *smsRecorder) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type outcomes struct {
	mu  sync.Mutex
	got []dispatch.Outcome
}

func (o *outcomes) OnOutcome(_ context.Context, out dispatch.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, out)
}

func (o *outcomes) kinds() []dispatch.OutcomeKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]dispatch.OutcomeKind, len(o.got))
	for i, g := range o.got {
		out[i] = g.Kind
	}
	return out
}

type directory struct {
	mu          sync.Mutex
	tokens      map[string][]string
	contacts    map[string]dispatch.Contact
	deactivated []string
}

func (d *directory) ActiveTokens(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tokens[userID], nil
}

func (d *directory) Deactivate(_ context.Context, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deactivated = append(d.deactivated, token)
	return nil
}

func (d *directory) Contact(_ context.Context, userID string) (dispatch.Contact, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contacts[userID]
	return c, ok, nil
}

func (d *directory) deactivatedTokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deactivated...)
}

func testConfig() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.BackoffInitial = 50 * time.Millisecond
	cfg.RateLimit = 0
	cfg.AttemptTimeout = time.Second
	return cfg
}
