package hub

import "errors"

var (
	ErrUnauthorized    = errors.New("hub: unauthorized")
	ErrMissingToken    = errors.New("hub: missing token")
	ErrConnNotFound    = errors.New("hub: connection not found")
	ErrSlowConsumer    = errors.New("hub: outbound queue full")
	ErrHubClosed       = errors.New("hub: closed")
	ErrInvalidRoom     = errors.New("hub: invalid room")
	ErrInvalidMessage  = errors.New("hub: invalid message")
	ErrUnknownEvent    = errors.New("hub: unknown event")
	ErrNotDonor        = errors.New("hub: connection is not a donor")
	ErrActionsNotWired = errors.New("hub: actions not configured")
)
