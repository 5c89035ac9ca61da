package presence

import "errors"

var (
	ErrNotFound         = errors.New("presence: donor not found")
	ErrInvalidEntry     = errors.New("presence: invalid entry")
	ErrInvalidQuery     = errors.New("presence: invalid query")
	ErrStoreUnavailable = errors.New("presence: store unavailable")
)
