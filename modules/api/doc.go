// Package api serves the REST surface of the engine: creating emergencies,
// recording donor responses, status transitions, donor availability and
// notification queue statistics. Every route requires a Bearer token
// accepted by the same authenticator as the WebSocket hub.
package api
