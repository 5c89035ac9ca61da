// Package requestid tags every HTTP request with a correlation id.
//
// Middleware reuses a well-formed X-Request-ID header or generates a UUID,
// stores it in the request context and echoes it in the response. The
// WebSocket upgrade carries the same id, so hub connection logs and REST
// logs for one client interaction can be joined. Notification jobs store
// the id of the call that enqueued them and the dispatch worker restores it
// while delivering. LoggerExtractor plugs the id into logger.New via
// logger.WithContextExtractors.
package requestid
