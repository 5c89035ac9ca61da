package match

import "errors"

var (
	ErrInvalidQuery     = errors.New("match: invalid query")
	ErrNoFallback       = errors.New("match: live store failed and no durable source is configured")
	ErrMatchUnavailable = errors.New("match: no candidate source available")
	ErrFacilitySource   = errors.New("match: facility lookup failed")
)
