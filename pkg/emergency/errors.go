package emergency

import "errors"

var (
	ErrNotFound          = errors.New("emergency: not found")
	ErrResponseNotFound  = errors.New("emergency: response not found")
	ErrInvalidTransition = errors.New("emergency: invalid status transition")
	ErrNotActive         = errors.New("emergency: emergency is not active")
	ErrPersist           = errors.New("emergency: failed to persist emergency")
	ErrInvalidResponse   = errors.New("emergency: invalid response")
	ErrInvalidDonor      = errors.New("emergency: invalid donor availability")
	ErrPresenceDisabled  = errors.New("emergency: presence store not configured")
)
