package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/emergency"
	"github.com/dmitrymomot/pulse/pkg/hub"
)

var errNotYourDonor = handler.HTTPError{Code: http.StatusForbidden, Key: "donor_mismatch"}

var (
	errNotActive      = handler.HTTPError{Code: http.StatusConflict, Key: "emergency_not_active"}
	errTransition     = handler.HTTPError{Code: http.StatusConflict, Key: "invalid_transition"}
	errInvalidRequest = handler.HTTPError{Code: http.StatusUnprocessableEntity, Key: "invalid_request"}
	errNotDonor       = handler.HTTPError{Code: http.StatusForbidden, Key: "not_a_donor"}
)

func classify(err error) (handler.HTTPError, bool) {
	switch {
	case errors.Is(err, hub.ErrMissingToken), errors.Is(err, hub.ErrUnauthorized):
		return handler.ErrUnauthorized, true
	case errors.Is(err, hub.ErrNotDonor):
		return errNotDonor, true
	case errors.Is(err, emergency.ErrNotFound), errors.Is(err, emergency.ErrResponseNotFound):
		return handler.ErrNotFound, true
	case errors.Is(err, emergency.ErrNotActive):
		return errNotActive, true
	case errors.Is(err, emergency.ErrInvalidTransition):
		return errTransition, true
	case errors.Is(err, emergency.ErrInvalidResponse), errors.Is(err, emergency.ErrInvalidDonor):
		return errInvalidRequest, true
	case errors.Is(err, emergency.ErrPresenceDisabled):
		return handler.ErrServiceUnavailable, true
	}
	return handler.HTTPError{}, false
}
