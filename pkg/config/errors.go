package config

import "errors"

var (
	ErrNilPointer    = errors.New("config: nil pointer")
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrLoadingEnv    = errors.New("config: failed to load env file")
)
