package dispatch

import "errors"

var (
	ErrStorageNil      = errors.New("dispatch: storage cannot be nil")
	ErrNoJobs          = errors.New("dispatch: no jobs to enqueue")
	ErrInvalidJob      = errors.New("dispatch: invalid job")
	ErrJobNotFound     = errors.New("dispatch: job not found")
	ErrNoJobToClaim    = errors.New("dispatch: no job to claim")
	ErrJobCreate       = errors.New("dispatch: failed to create job")
	ErrJobUpdate       = errors.New("dispatch: failed to update job")
	ErrWorkerStarted   = errors.New("dispatch: worker already started")
	ErrWorkerStopped   = errors.New("dispatch: worker not started")
	ErrNoSender        = errors.New("dispatch: no sender configured for job type")
	ErrSMSDisabled     = errors.New("dispatch: sms disabled for country")
	ErrUnknownProvider = errors.New("dispatch: unknown sms provider")
	ErrInvalidRoutes   = errors.New("dispatch: invalid sms routing file")

	// ErrInvalidToken is returned by push senders when the gateway reports
	// the device token as unregistered. The token is deactivated and the
	// job fails without further attempts.
	ErrInvalidToken = errors.New("dispatch: invalid device token")

	// ErrPermanent marks provider errors that retrying cannot fix.
	ErrPermanent = errors.New("dispatch: permanent delivery failure")
)
