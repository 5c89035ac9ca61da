package hub_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/hub"
	"github.com/dmitrymomot/pulse/pkg/presence"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newHub(t *testing.T, opts ...hub.Option) *hub.Hub {
	t.Helper()
	h := hub.New(testAuth(), opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func connect(t *testing.T, h *hub.Hub, token string) (*hub.Conn, *fakeTransport) {
	t.Helper()
	tr := newTransport()
	c, err := h.Connect(context.Background(), tr, token)
	require.NoError(t, err)
	return c, tr
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("joins region and personal rooms", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		c, _ := connect(t, h, "donor")

		assert.Equal(t, hub.StateJoined, c.State())
		rooms := h.Rooms(c.ID())
		sort.Strings(rooms)
		assert.Equal(t, []string{"region:in", "user:donor-1"}, rooms)
		assert.Equal(t, 1, h.ConnCount())
	})

	t.Run("rejected token closes transport", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		tr := newTransport()
		c, err := h.Connect(context.Background(), tr, "forged")

		require.ErrorIs(t, err, hub.ErrUnauthorized)
		assert.Nil(t, c)
		assert.True(t, tr.isClosed())
		assert.Equal(t, hub.ReasonUnauthorized, tr.closeReason())
		assert.Zero(t, h.ConnCount())
	})

	t.Run("closed hub refuses connections", func(t *testing.T) {
		t.Parallel()
		h := hub.New(testAuth())
		require.NoError(t, h.Close())
		_, err := h.Connect(context.Background(), newTransport(), "donor")
		assert.ErrorIs(t, err, hub.ErrHubClosed)
	})
}

func TestBroadcast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reaches room members only", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		_, in1 := connect(t, h, "donor")
		_, in2 := connect(t, h, "requester")
		_, us := connect(t, h, "us")

		n := h.Broadcast(ctx, hub.RegionRoom("IN"), hub.EventEmergencyCreated, map[string]string{"emergencyId": "e1"})
		assert.Equal(t, 2, n)

		require.Eventually(t, func() bool {
			_, ok1 := in1.find(hub.EventEmergencyCreated)
			_, ok2 := in2.find(hub.EventEmergencyCreated)
			return ok1 && ok2
		}, waitFor, tick)
		assert.Empty(t, us.events())

		env, _ := in1.find(hub.EventEmergencyCreated)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, "e1", payload["emergencyId"])
	})

	t.Run("preserves per-room order", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		_, tr := connect(t, h, "donor")

		for i := range 10 {
			h.Broadcast(ctx, hub.UserRoom("donor-1"), hub.EventEmergencyStatusUpdated, map[string]int{"seq": i})
		}
		require.Eventually(t, func() bool { return len(tr.events()) == 10 }, waitFor, tick)

		tr.mu.Lock()
		defer tr.mu.Unlock()
		for i, f := range tr.frames {
			var p map[string]int
			require.NoError(t, json.Unmarshal(f.Data, &p))
			assert.Equal(t, i, p["seq"])
		}
	})

	t.Run("broadcast all and send to conn", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		c1, tr1 := connect(t, h, "donor")
		_, tr2 := connect(t, h, "us")

		assert.Equal(t, 2, h.BroadcastAll(ctx, hub.EventInventoryUpdated, map[string]int{"units": 4}))
		require.NoError(t, h.SendToConn(ctx, c1.ID(), hub.EventEmergencyNearby, map[string]float64{"distance": 1.5}))
		assert.ErrorIs(t, h.SendToConn(ctx, "missing", hub.EventEmergencyNearby, nil), hub.ErrConnNotFound)

		require.Eventually(t, func() bool {
			_, ok := tr1.find(hub.EventEmergencyNearby)
			return ok && len(tr2.events()) == 1
		}, waitFor, tick)
		_, got := tr2.find(hub.EventEmergencyNearby)
		assert.False(t, got)
	})

	t.Run("slow consumer is dropped without blocking others", func(t *testing.T) {
		t.Parallel()
		h := newHub(t, hub.WithConfig(hub.Config{QueueSize: 1, WriteTimeout: time.Minute}))

		slow := newBlockedTransport()
		_, err := h.Connect(ctx, slow, "donor")
		require.NoError(t, err)
		_, fast := connect(t, h, "requester")

		for i := range 3 {
			h.Broadcast(ctx, hub.RegionRoom("IN"), hub.EventEmergencyCreated, map[string]int{"seq": i})
			require.Eventually(t, func() bool { return len(fast.events()) == i+1 }, waitFor, tick)
		}

		require.Eventually(t, slow.isClosed, waitFor, tick)
		assert.Equal(t, hub.ReasonSlowConsumer, slow.closeReason())
		require.Eventually(t, func() bool { return h.ConnCount() == 1 }, waitFor, tick)
	})
}

func TestJoinLeave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		c, _ := connect(t, h, "donor")

		require.NoError(t, h.Join(ctx, c.ID(), "emergency:e1"))
		require.NoError(t, h.Join(ctx, c.ID(), "emergency:e1"))
		assert.Equal(t, 1, h.RoomSize("emergency:e1"))

		require.NoError(t, h.Leave(c.ID(), "emergency:e1"))
		require.NoError(t, h.Leave(c.ID(), "emergency:e1"))
		assert.Zero(t, h.RoomSize("emergency:e1"))

		assert.ErrorIs(t, h.Join(ctx, "missing", "emergency:e1"), hub.ErrConnNotFound)
		assert.ErrorIs(t, h.Join(ctx, c.ID(), ""), hub.ErrInvalidRoom)
	})

	t.Run("emergency room sends snapshot", func(t *testing.T) {
		t.Parallel()
		actions := &stubActions{snapshots: map[string]any{
			"e1": map[string]any{"status": "active", "matchedDonors": 3},
		}}
		h := newHub(t, hub.WithActions(actions))
		c, tr := connect(t, h, "requester")

		require.NoError(t, h.Join(ctx, c.ID(), hub.EmergencyRoom("e1")))
		require.Eventually(t, func() bool {
			_, ok := tr.find(hub.EventEmergencyStatus)
			return ok
		}, waitFor, tick)

		env, _ := tr.find(hub.EventEmergencyStatus)
		var snap map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &snap))
		assert.Equal(t, "active", snap["status"])
		assert.EqualValues(t, 3, snap["matchedDonors"])
	})

	t.Run("unknown emergency is not joined", func(t *testing.T) {
		t.Parallel()
		h := newHub(t, hub.WithActions(&stubActions{}))
		c, _ := connect(t, h, "requester")

		assert.ErrorIs(t, h.Join(ctx, c.ID(), hub.EmergencyRoom("nope")), errNoEmergency)
		assert.Zero(t, h.RoomSize(hub.EmergencyRoom("nope")))
	})
}

func TestDisconnectReleasesPresence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	spot := geo.Point{Lat: 12.97, Lon: 77.59}

	t.Run("owner connection removes presence", func(t *testing.T) {
		t.Parallel()
		store := presence.NewMemoryStore()
		h := newHub(t, hub.WithPresence(store))
		c, tr := connect(t, h, "donor")
		_, peer := connect(t, h, "requester")

		require.NoError(t, store.SetAvailable(ctx, presence.Entry{
			DonorID: "donor-1", Location: spot, BloodGroup: "O+", CountryCode: "IN", ConnID: c.ID(),
		}))

		h.Disconnect(c.ID())

		assert.Equal(t, hub.StateDisconnected, c.State())
		assert.True(t, tr.isClosed())
		_, err := store.Get(ctx, "donor-1")
		assert.ErrorIs(t, err, presence.ErrNotFound)
		var env hub.Envelope
		require.Eventually(t, func() bool {
			var ok bool
			env, ok = peer.find(hub.EventDonorPresenceUpdated)
			return ok
		}, waitFor, tick)
		assert.Equal(t, 1, h.ConnCount())

		var fields map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &fields))
		assert.Equal(t, map[string]any{"donorId": "donor-1", "isAvailable": false}, fields)
	})

	t.Run("stale connection keeps newer claim", func(t *testing.T) {
		t.Parallel()
		store := presence.NewMemoryStore()
		h := newHub(t, hub.WithPresence(store))
		old, _ := connect(t, h, "donor")
		fresh, _ := connect(t, h, "donor")

		require.NoError(t, store.SetAvailable(ctx, presence.Entry{
			DonorID: "donor-1", Location: spot, BloodGroup: "O+", CountryCode: "IN", ConnID: fresh.ID(),
		}))

		h.Disconnect(old.ID())
		got, err := store.Get(ctx, "donor-1")
		require.NoError(t, err)
		assert.Equal(t, fresh.ID(), got.ConnID)
	})
}

func TestServeInbound(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, h *hub.Hub, token string) *fakeTransport {
		t.Helper()
		tr := newTransport()
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = h.Serve(ctx, tr, token) }()
		return tr
	}

	waitEvent := func(t *testing.T, tr *fakeTransport, event string) hub.Envelope {
		t.Helper()
		var env hub.Envelope
		require.Eventually(t, func() bool {
			var ok bool
			env, ok = tr.find(event)
			return ok
		}, waitFor, tick, "event %s not received", event)
		return env
	}

	t.Run("ping", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		tr := serve(t, h, "donor")
		tr.send(hub.InboundPing, nil)
		waitEvent(t, tr, hub.EventPong)
	})

	t.Run("join by bare id then leave", func(t *testing.T) {
		t.Parallel()
		actions := &stubActions{snapshots: map[string]any{"e1": map[string]string{"status": "active"}}}
		h := newHub(t, hub.WithActions(actions))
		tr := serve(t, h, "requester")

		tr.send(hub.InboundJoin, "e1")
		waitEvent(t, tr, hub.EventJoined)
		assert.Equal(t, []string{hub.EventEmergencyStatus, hub.EventJoined}, tr.events())
		assert.Equal(t, 1, h.RoomSize("emergency:e1"))

		tr.send(hub.InboundLeave, map[string]string{"emergencyId": "e1"})
		waitEvent(t, tr, hub.EventLeft)
		assert.Zero(t, h.RoomSize("emergency:e1"))
	})

	t.Run("respond", func(t *testing.T) {
		t.Parallel()
		actions := &stubActions{}
		h := newHub(t, hub.WithActions(actions))
		tr := serve(t, h, "donor")

		eta, yes := 15, true
		tr.send(hub.InboundRespond, hub.RespondRequest{EmergencyID: "e1", Available: &yes, ETAMinutes: &eta})
		env := waitEvent(t, tr, hub.EventResponseSent)

		var res map[string]string
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, "donor-1", res["donorId"])
		actions.mu.Lock()
		defer actions.mu.Unlock()
		require.Len(t, actions.responses, 1)
		assert.Equal(t, 15, *actions.responses[0].ETAMinutes)
	})

	t.Run("respond requires donor role and an answer", func(t *testing.T) {
		t.Parallel()
		actions := &stubActions{}
		h := newHub(t, hub.WithActions(actions))

		yes := true
		requester := serve(t, h, "requester")
		requester.send(hub.InboundRespond, hub.RespondRequest{EmergencyID: "e1", Available: &yes})
		env := waitEvent(t, requester, hub.EventError)
		assert.Contains(t, string(env.Data), "not a donor")

		donor := serve(t, h, "donor")
		donor.send(hub.InboundRespond, map[string]string{"emergencyId": "e1"})
		waitEvent(t, donor, hub.EventError)

		actions.mu.Lock()
		defer actions.mu.Unlock()
		assert.Empty(t, actions.responses)
	})

	t.Run("ping keeps donor presence alive", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}

		store := presence.NewMemoryStore(presence.WithClock(clock))
		h := newHub(t, hub.WithPresence(store))
		tr := serve(t, h, "donor")
		require.NoError(t, store.SetAvailable(context.Background(), presence.Entry{
			DonorID: "donor-1", Location: geo.Point{Lat: 12.97, Lon: 77.59}, BloodGroup: "O+", CountryCode: "IN",
		}))

		for i := 0; i < 3; i++ {
			advance(20 * time.Minute)
			tr.send(hub.InboundPing, nil)
			require.Eventually(t, func() bool { return countEvents(tr, hub.EventPong) == i+1 }, waitFor, tick)
		}
		_, err := store.Get(context.Background(), "donor-1")
		require.NoError(t, err, "entry outlived its ttl through heartbeats")

		advance(31 * time.Minute)
		_, err = store.Get(context.Background(), "donor-1")
		assert.ErrorIs(t, err, presence.ErrNotFound)
	})

	t.Run("presence requires donor role", func(t *testing.T) {
		t.Parallel()
		actions := &stubActions{}
		h := newHub(t, hub.WithActions(actions))

		requester := serve(t, h, "requester")
		requester.send(hub.InboundUpdatePresence, hub.PresenceRequest{Available: true, Latitude: 12.9, Longitude: 77.5})
		env := waitEvent(t, requester, hub.EventError)
		assert.Contains(t, string(env.Data), "not a donor")

		donor := serve(t, h, "donor")
		donor.send(hub.InboundUpdatePresence, hub.PresenceRequest{Available: true, Latitude: 12.9, Longitude: 77.5})
		waitEvent(t, donor, hub.EventDonorPresenceUpdated)
	})

	t.Run("unknown event and garbage", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		tr := serve(t, h, "donor")

		tr.send("emergency:explode", nil)
		tr.in <- []byte("{not json")
		require.Eventually(t, func() bool { return len(tr.events()) == 2 }, waitFor, tick)
		assert.Equal(t, []string{hub.EventError, hub.EventError}, tr.events())
	})

	t.Run("transport end disconnects", func(t *testing.T) {
		t.Parallel()
		h := newHub(t)
		tr := serve(t, h, "donor")
		require.Eventually(t, func() bool { return h.ConnCount() == 1 }, waitFor, tick)

		_ = tr.Close(hub.ReasonNormal)
		require.Eventually(t, func() bool { return h.ConnCount() == 0 }, waitFor, tick)
	})
}
