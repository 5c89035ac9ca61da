// Package config loads env-tagged structs with caarlos0/env.
//
// Every component of the engine declares its own Config struct with env and
// envDefault tags; cmd/pulse composes them with envPrefix and calls Load once.
// A .env file in the working directory is read on first use.
package config
