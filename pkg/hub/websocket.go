package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

const maxFrameBytes = 64 << 10

type wsTransport struct {
	conn *websocket.Conn
}

// NewWebSocketTransport adapts an accepted WebSocket to Transport. Frames
// are JSON text messages.
func NewWebSocketTransport(c *websocket.Conn) Transport {
	c.SetReadLimit(maxFrameBytes)
	return &wsTransport{conn: c}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	typ, b, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, ErrInvalidMessage
	}
	return b, nil
}

func (t *wsTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

func (t *wsTransport) Close(reason CloseReason) error {
	code := websocket.StatusNormalClosure
	switch reason {
	case ReasonUnauthorized:
		code = websocket.StatusPolicyViolation
	case ReasonSlowConsumer:
		code = websocket.StatusTryAgainLater
	case ReasonShutdown:
		code = websocket.StatusGoingAway
	case ReasonWriteFailed:
		code = websocket.StatusInternalError
	}
	return t.conn.Close(code, string(reason))
}

// Handler upgrades GET requests to WebSocket connections served by h.
// The token is taken from the "token" query parameter or the
// Authorization: Bearer header.
func Handler(h *Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: h.cfg.OriginPatterns,
		})
		if err != nil {
			h.log.LogAttrs(r.Context(), slog.LevelDebug, "websocket upgrade failed",
				logger.Component("hub"),
				logger.Error(err),
			)
			return
		}

		// The request context is cancelled when the handler returns, which is
		// exactly the lifetime of the connection.
		_ = h.Serve(r.Context(), NewWebSocketTransport(c), token)
	})
}
