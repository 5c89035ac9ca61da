package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/presence"
)

// RespondRequest is the payload of emergency:respond.
// Available is required; a frame without it is rejected.
type RespondRequest struct {
	EmergencyID string `json:"emergencyId"`
	Available   *bool  `json:"available"`
	ETAMinutes  *int   `json:"etaMinutes,omitempty"`
}

// PresenceRequest is the payload of donor:update-presence.
type PresenceRequest struct {
	Available  bool    `json:"isAvailable"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	BloodGroup string  `json:"bloodGroup,omitempty"`
}

type emergencyRef struct {
	EmergencyID string `json:"emergencyId"`
}

// parseEmergencyID accepts either a bare JSON string or {"emergencyId": "..."}.
func parseEmergencyID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		id = strings.TrimSpace(id)
	} else {
		var ref emergencyRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return "", ErrInvalidMessage
		}
		id = strings.TrimSpace(ref.EmergencyID)
	}
	if id == "" {
		return "", ErrInvalidMessage
	}
	return id, nil
}

func (h *Hub) handleInbound(ctx context.Context, c *Conn, frame []byte) {
	var in Envelope
	if err := json.Unmarshal(frame, &in); err != nil || in.Event == "" {
		h.replyError(ctx, c, "", ErrInvalidMessage)
		return
	}

	var err error
	switch in.Event {
	case InboundPing:
		h.heartbeat(ctx, c)
		err = h.SendToConn(ctx, c.id, EventPong, map[string]int64{"timestamp": time.Now().UnixMilli()})
	case InboundJoin:
		err = h.inboundJoin(ctx, c, in.Data)
	case InboundLeave:
		err = h.inboundLeave(ctx, c, in.Data)
	case InboundRespond:
		err = h.inboundRespond(ctx, c, in.Data)
	case InboundUpdatePresence:
		err = h.inboundPresence(ctx, c, in.Data)
	default:
		err = ErrUnknownEvent
	}
	if err != nil {
		h.replyError(ctx, c, in.Event, err)
	}
}

func (h *Hub) inboundJoin(ctx context.Context, c *Conn, data json.RawMessage) error {
	id, err := parseEmergencyID(data)
	if err != nil {
		return err
	}
	if err := h.Join(ctx, c.id, EmergencyRoom(id)); err != nil {
		return err
	}
	return h.SendToConn(ctx, c.id, EventJoined, emergencyRef{EmergencyID: id})
}

func (h *Hub) inboundLeave(ctx context.Context, c *Conn, data json.RawMessage) error {
	id, err := parseEmergencyID(data)
	if err != nil {
		return err
	}
	if err := h.Leave(c.id, EmergencyRoom(id)); err != nil {
		return err
	}
	return h.SendToConn(ctx, c.id, EventLeft, emergencyRef{EmergencyID: id})
}

// heartbeat refreshes the presence TTL of a donor whose socket is still
// alive. A donor who is not registered as available has nothing to refresh.
func (h *Hub) heartbeat(ctx context.Context, c *Conn) {
	if h.presence == nil || !c.identity.IsDonor() {
		return
	}
	err := h.presence.Heartbeat(ctx, c.identity.UserID)
	if err == nil || errors.Is(err, presence.ErrNotFound) {
		return
	}
	h.log.LogAttrs(ctx, slog.LevelWarn, "presence heartbeat failed",
		logger.Component("hub"),
		logger.DonorID(c.identity.UserID),
		logger.ConnID(c.id),
		logger.Error(err),
	)
}

func (h *Hub) inboundRespond(ctx context.Context, c *Conn, data json.RawMessage) error {
	if !c.identity.IsDonor() {
		return ErrNotDonor
	}
	actions := h.getActions()
	if actions == nil {
		return ErrActionsNotWired
	}
	var req RespondRequest
	if err := json.Unmarshal(data, &req); err != nil || req.EmergencyID == "" || req.Available == nil {
		return ErrInvalidMessage
	}
	res, err := actions.Respond(ctx, c.identity, req)
	if err != nil {
		return err
	}
	return h.SendToConn(ctx, c.id, EventResponseSent, res)
}

func (h *Hub) inboundPresence(ctx context.Context, c *Conn, data json.RawMessage) error {
	if !c.identity.IsDonor() {
		return ErrNotDonor
	}
	actions := h.getActions()
	if actions == nil {
		return ErrActionsNotWired
	}
	var req PresenceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ErrInvalidMessage
	}
	if err := actions.UpdatePresence(ctx, c.identity, c.id, req); err != nil {
		return err
	}
	return h.SendToConn(ctx, c.id, EventDonorPresenceUpdated,
		PresenceUpdate{DonorID: c.identity.UserID, Available: req.Available})
}

func (h *Hub) replyError(ctx context.Context, c *Conn, event string, err error) {
	h.log.LogAttrs(ctx, slog.LevelDebug, "inbound message failed",
		logger.Component("hub"),
		logger.ConnID(c.id),
		logger.Event(event),
		logger.Error(err),
	)
	msg := "request failed"
	var pub interface{ PublicMessage() string }
	switch {
	case errors.As(err, &pub):
		msg = pub.PublicMessage()
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrNotDonor):
		msg = err.Error()
	}
	_ = h.SendToConn(ctx, c.id, EventError, map[string]string{"event": event, "message": msg})
}
