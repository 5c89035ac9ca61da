package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// PresenceTracker keeps a connected donor's presence entry alive. Heartbeat
// refreshes the TTL on ping; Release removes the entry on disconnect, but
// only if the disconnecting connection still owns it.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, donorID string) error
	Release(ctx context.Context, donorID, connID string) (bool, error)
}

// Actions are the domain operations reachable from inbound client messages.
type Actions interface {
	// Snapshot returns the current aggregate state of an emergency.
	Snapshot(ctx context.Context, emergencyID string) (any, error)
	Respond(ctx context.Context, who Identity, req RespondRequest) (any, error)
	UpdatePresence(ctx context.Context, who Identity, connID string, req PresenceRequest) error
}

// Hub tracks live connections of this process and their room membership.
// Broadcasts reach local connections only; other processes are reached
// through the change bus.
type Hub struct {
	cfg      Config
	auth     Authenticator
	presence PresenceTracker
	log      *slog.Logger

	actionsMu sync.RWMutex
	actions   Actions

	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[string]map[string]*Conn
	closed bool

	wg sync.WaitGroup
}

type Option func(*Hub)

func WithPresence(p PresenceTracker) Option {
	return func(h *Hub) { h.presence = p }
}

func WithActions(a Actions) Option {
	return func(h *Hub) { h.actions = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(h *Hub) {
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = h.cfg.QueueSize
		}
		if cfg.WriteTimeout <= 0 {
			cfg.WriteTimeout = h.cfg.WriteTimeout
		}
		if cfg.ReleaseTimeout <= 0 {
			cfg.ReleaseTimeout = h.cfg.ReleaseTimeout
		}
		h.cfg = cfg
	}
}

func New(auth Authenticator, opts ...Option) *Hub {
	h := &Hub{
		cfg: Config{
			QueueSize:      64,
			WriteTimeout:   5 * time.Second,
			ReleaseTimeout: 2 * time.Second,
		},
		auth:  auth,
		log:   slog.Default(),
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetActions wires the domain operations after construction; the emergency
// service itself needs the hub, so one side has to be set late.
func (h *Hub) SetActions(a Actions) {
	h.actionsMu.Lock()
	h.actions = a
	h.actionsMu.Unlock()
}

func (h *Hub) getActions() Actions {
	h.actionsMu.RLock()
	defer h.actionsMu.RUnlock()
	return h.actions
}

// Connect authenticates the transport and registers the connection in its
// region and personal rooms. On failure the transport is closed.
func (h *Hub) Connect(ctx context.Context, t Transport, token string) (*Conn, error) {
	c := &Conn{
		id:        uuid.NewString(),
		transport: t,
		rooms:     make(map[string]struct{}),
		send:      make(chan []byte, h.cfg.QueueSize),
		done:      make(chan struct{}),
	}
	c.setState(StateConnecting)

	id, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		c.setState(StateDisconnected)
		_ = t.Close(ReasonUnauthorized)
		h.log.LogAttrs(ctx, slog.LevelInfo, "connection rejected",
			logger.Component("hub"),
			logger.Error(err),
		)
		return nil, err
	}
	c.identity = id
	c.setState(StateAuthenticated)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.setState(StateDisconnected)
		_ = t.Close(ReasonShutdown)
		return nil, ErrHubClosed
	}
	h.conns[c.id] = c
	h.addToRoom(RegionRoom(id.CountryCode), c)
	h.addToRoom(UserRoom(id.UserID), c)
	c.setState(StateJoined)
	h.wg.Add(1)
	h.mu.Unlock()

	go c.writeLoop(h)

	h.log.LogAttrs(ctx, slog.LevelDebug, "connection joined",
		logger.Component("hub"),
		logger.ConnID(c.id),
		logger.UserID(id.UserID),
	)
	return c, nil
}

// Serve runs a connection until the transport fails or ctx ends.
func (h *Hub) Serve(ctx context.Context, t Transport, token string) error {
	c, err := h.Connect(ctx, t, token)
	if err != nil {
		return err
	}
	defer h.disconnect(c, ReasonNormal)

	for {
		frame, err := t.Read(ctx)
		if err != nil {
			return nil
		}
		h.handleInbound(ctx, c, frame)
	}
}

// Join adds a connection to a room. Joining an emergency room also queues
// an emergency:status snapshot for that connection before Join returns.
func (h *Hub) Join(ctx context.Context, connID, room string) error {
	if room == "" {
		return ErrInvalidRoom
	}
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return ErrConnNotFound
	}
	_, already := c.rooms[room]
	h.addToRoom(room, c)
	h.mu.Unlock()

	emergencyID, isEmergency := EmergencyIDFromRoom(room)
	actions := h.getActions()
	if !isEmergency || actions == nil {
		return nil
	}

	// Membership first, snapshot second: any update racing with the join is
	// either delivered as a broadcast or already folded into the snapshot.
	snap, err := actions.Snapshot(ctx, emergencyID)
	if err != nil {
		if !already {
			_ = h.Leave(connID, room)
		}
		return err
	}
	frame, err := encode(EventEmergencyStatus, snap)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		go h.disconnect(c, ReasonSlowConsumer)
		return ErrSlowConsumer
	}
	return nil
}

// Leave is idempotent.
func (h *Hub) Leave(connID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	h.removeFromRoom(room, c)
	return nil
}

// Broadcast queues event for every connection in room and returns how many
// accepted it. Connections with a full queue are dropped.
func (h *Hub) Broadcast(ctx context.Context, room, event string, payload any) int {
	frame, err := encode(event, payload)
	if err != nil {
		h.log.LogAttrs(ctx, slog.LevelError, "broadcast payload encoding failed",
			logger.Component("hub"),
			logger.Event(event),
			logger.Error(err),
		)
		return 0
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	return h.deliver(ctx, members, frame, event)
}

// BroadcastAll queues event for every local connection.
func (h *Hub) BroadcastAll(ctx context.Context, event string, payload any) int {
	frame, err := encode(event, payload)
	if err != nil {
		return 0
	}
	h.mu.RLock()
	all := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()

	return h.deliver(ctx, all, frame, event)
}

// SendToConn delivers to a single connection.
func (h *Hub) SendToConn(ctx context.Context, connID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}
	frame, err := encode(event, payload)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		go h.disconnect(c, ReasonSlowConsumer)
		return ErrSlowConsumer
	}
	return nil
}

func (h *Hub) deliver(ctx context.Context, conns []*Conn, frame []byte, event string) int {
	n := 0
	for _, c := range conns {
		if c.enqueue(frame) {
			n++
			continue
		}
		h.log.LogAttrs(ctx, slog.LevelWarn, "dropping slow connection",
			logger.Component("hub"),
			logger.ConnID(c.id),
			logger.Event(event),
		)
		go h.disconnect(c, ReasonSlowConsumer)
	}
	return n
}

// Disconnect closes a connection by id. Unknown ids are ignored.
func (h *Hub) Disconnect(connID string) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		h.disconnect(c, ReasonNormal)
	}
}

func (h *Hub) disconnect(c *Conn, reason CloseReason) {
	c.closeOnce.Do(func() {
		c.setState(StateDisconnected)

		h.mu.Lock()
		for room := range c.rooms {
			h.removeFromRoom(room, c)
		}
		delete(h.conns, c.id)
		h.mu.Unlock()

		close(c.done)
		_ = c.transport.Close(reason)
		h.releasePresence(c)

		h.log.LogAttrs(context.Background(), slog.LevelDebug, "connection closed",
			logger.Component("hub"),
			logger.ConnID(c.id),
			logger.UserID(c.identity.UserID),
			slog.String("reason", string(reason)),
		)
	})
}

func (h *Hub) releasePresence(c *Conn) {
	if h.presence == nil || !c.identity.IsDonor() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ReleaseTimeout)
	defer cancel()

	released, err := h.presence.Release(ctx, c.identity.UserID, c.id)
	if err != nil {
		h.log.LogAttrs(ctx, slog.LevelWarn, "presence release failed",
			logger.Component("hub"),
			logger.DonorID(c.identity.UserID),
			logger.ConnID(c.id),
			logger.Error(err),
		)
		return
	}
	if released {
		h.Broadcast(ctx, RegionRoom(c.identity.CountryCode), EventDonorPresenceUpdated,
			PresenceUpdate{DonorID: c.identity.UserID})
	}
}

// Close disconnects every connection and waits for writer goroutines.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	all := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()

	for _, c := range all {
		h.disconnect(c, ReasonShutdown)
	}
	h.wg.Wait()
	return nil
}

func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms lists the rooms a connection belongs to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// addToRoom and removeFromRoom require h.mu held for writing.
func (h *Hub) addToRoom(room string, c *Conn) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) removeFromRoom(room string, c *Conn) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}
