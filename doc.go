/*
Package rsocket implements the core of the RSocket protocol: a bidirectional,
multiplexed, message-oriented application protocol that runs over any
reliable, ordered, byte-duplex transport.

RSocket models five interaction patterns on a single connection:
fire-and-forget, request/response, request/stream, request/channel and
metadata-push. Every stream within a connection is independently
flow-controlled by a request-N credit scheme, so a slow consumer never
forces the whole connection to block.

A Connection multiplexes many Streams. Every frame that arrives on the
transport is decoded once by the frame codec and then routed by the stream
Registry: frames addressed to stream id 0 go to the connection's own state
machine (setup, keepalive, lease, connection-level error), everything else
goes to the per-stream state machine that owns that id.

One endpoint plays both roles - requester and responder - concurrently on
every connection; which role applies to a given stream depends only on who
sent the initiating request frame.

Concrete transports (TCP, WebSocket, QUIC) live in the transport
subpackage and are consumed through its small byte-duplex Transport
interface; this package imports that subpackage only for the interface and
its ErrClosed sentinel, and never constructs a concrete adapter itself.
*/
package rsocket
