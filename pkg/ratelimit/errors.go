package ratelimit

import "errors"

var (
	ErrStoreRequired   = errors.New("ratelimit: store is required")
	ErrInvalidLimit    = errors.New("ratelimit: limit must be positive")
	ErrInvalidInterval = errors.New("ratelimit: interval must be positive")
	ErrInvalidBurst    = errors.New("ratelimit: burst must be positive")
	ErrExceedsBurst    = errors.New("ratelimit: requested tokens exceed burst")
)
