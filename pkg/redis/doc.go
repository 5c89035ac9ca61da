// Package redis bootstraps go-redis clients: Connect retries the initial
// ping and Healthcheck exposes a check for the HTTP health endpoint that
// also confirms Lua scripting works.
//
// The client is shared by the presence store, the Redis change bus, the job
// storage and the distributed rate limiter.
package redis
