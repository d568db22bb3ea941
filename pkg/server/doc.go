/*
Package server implements the pressbus routing and connection engine.

The server accepts TCP connections and runs one goroutine per connection
(plus the accept loop itself). Each connection moves through a fixed
lifecycle:

	CONNECTED -> ACTIVE -> CLOSING -> CLOSED

CONNECTED covers acceptance and registration with an empty subscription set;
ACTIVE is the request/response loop; CLOSING begins on a peer DISCONNECT or
socket fault; CLOSED is terminal and the entry is never reused.

# Concurrency model

Per connection, the receive loop blocks only on its own peer's bytes and a
dedicated writer goroutine is the sole writer to the socket, draining the
connection's buffered outbound channel. No goroutine ever blocks on another
connection's socket.

A PUBLISH appends to the history store, then broadcasts: the registry's
Matching snapshot is taken once and iterated, enqueueing the NEWS message on
each matched connection's outbound path. The snapshot makes broadcasts
race-free against concurrent subscription changes; delivery to any single
connection preserves publish order, while cross-connection timing is
unspecified. A subscriber whose outbound queue stays saturated past the
enqueue timeout is force-closed rather than allowed to stall the broadcast.

# Failure semantics

A malformed or oversize frame yields an ERROR response and the connection
stays ACTIVE. A socket-level fault is fatal to that connection only: it is
deregistered and released with no response attempted, and neither the accept
loop nor any other connection observes the failure. Only a failure to bind
the listener at startup is fatal to the process.
*/
package server
