package hub_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/hub"
)

func TestWebSocketHandler(t *testing.T) {
	t.Parallel()

	h := newHub(t)
	srv := httptest.NewServer(hub.Handler(h))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("ping pong", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, _, err := websocket.Dial(ctx, wsURL+"?token=donor", nil)
		require.NoError(t, err)
		defer c.CloseNow()

		require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"event":"ping"}`)))

		typ, raw, err := c.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)

		var env hub.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, hub.EventPong, env.Event)
	})

	t.Run("region broadcast reaches socket", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, _, err := websocket.Dial(ctx, wsURL+"?token=us", nil)
		require.NoError(t, err)
		defer c.CloseNow()

		require.Eventually(t, func() bool { return h.RoomSize(hub.RegionRoom("US")) == 1 }, waitFor, tick)
		h.Broadcast(ctx, hub.RegionRoom("US"), hub.EventHospitalStatusUpdated, map[string]string{"hospitalId": "h1"})

		_, raw, err := c.Read(ctx)
		require.NoError(t, err)
		var env hub.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, hub.EventHospitalStatusUpdated, env.Event)
	})

	t.Run("bad token closes with policy violation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, _, err := websocket.Dial(ctx, wsURL+"?token=forged", nil)
		require.NoError(t, err)
		defer c.CloseNow()

		_, _, err = c.Read(ctx)
		require.Error(t, err)
		assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	})
}
