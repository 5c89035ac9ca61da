// Package hub manages the live client connections of one process.
//
// Every connection moves through connecting, authenticated, joined and
// disconnected. Authentication happens once, synchronously, in Connect; a
// rejected token closes the transport. Accepted connections are placed in
// region:<cc> and user:<id> and may join emergency:<id> rooms on request.
//
// Delivery is best effort and at most once. Each connection owns a bounded
// outbound queue drained by its own writer goroutine, so a broadcast never
// waits on a slow client: a full queue drops the message and closes that
// connection. Per room, a connection sees broadcasts in the order this
// process issued them.
//
// Joining an emergency room queues an emergency:status snapshot for the
// joining connection, the only replay the hub provides. A donor's ping
// refreshes its presence TTL, and disconnecting releases the entry when
// this connection still owns it.
//
// Handler serves the hub over WebSocket (github.com/coder/websocket) using
// JSON frames of the form {"event": "...", "data": {...}}.
package hub
