// Package transport provides the byte-duplex adapters the RSocket
// connection core consumes, per spec.md §1 ("Concrete transports ...
// specified only by the byte-duplex interface they must provide") and §4.B.
// The core package imports this one only for the Transport interface and
// ErrClosed; callers construct a concrete Transport and wire it into a
// Connection explicitly.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send/Recv once the transport has been closed,
// analogous to the teacher's serverClosedError (muxer.go).
var ErrClosed = errors.New("transport: closed")

// Transport is a duplex channel that moves whole, already-framed RSocket
// frame bytes, per spec.md §4.B. Implementations decide how a frame
// boundary is represented on the wire: a length prefix for byte-stream
// transports (TCP, QUIC streams), or the transport's native message
// boundary (WebSocket).
type Transport interface {
	// Send delivers one frame's bytes as a single unit, or returns an
	// error without partial delivery.
	Send(ctx context.Context, frame []byte) error
	// Recv returns the next frame's bytes, or ErrClosed/a wrapped error if
	// the transport has been closed.
	Recv(ctx context.Context) ([]byte, error)
	// Close tears down the transport. reason is advisory and transport-
	// specific (a WebSocket close reason string, for example).
	Close(reason string) error
}
