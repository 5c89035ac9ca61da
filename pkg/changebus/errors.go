package changebus

import "errors"

var (
	ErrUnknownChannel  = errors.New("changebus: unknown channel")
	ErrPayloadTooLarge = errors.New("changebus: payload exceeds notify limit")
	ErrDecodePayload   = errors.New("changebus: failed to decode payload")
	ErrHandlerPanic    = errors.New("changebus: handler panicked")
	ErrListen          = errors.New("changebus: listen failed")
	ErrPublish         = errors.New("changebus: publish failed")
)
