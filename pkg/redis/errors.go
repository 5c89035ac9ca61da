package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis: empty connection url")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection url")
	ErrNotReady             = errors.New("redis: server did not become ready")
	ErrHealthcheckFailed    = errors.New("redis: healthcheck failed")
	ErrScriptingDisabled    = errors.New("redis: lua scripting unavailable")
)
