package rsocket

import (
	"context"

	"github.com/rsocket/rsocket-go-core/metrics"
)

// IncomingStream is the application-facing handle for the inbound half of
// a request/stream or request/channel interaction: the requester's view of
// the replies, or a channel responder's view of the requester's half (the
// inbound argument of Handler.HandleRequestChannel). Events
// delivers the peer's payloads, Request grants more of them, and Cancel
// stops the interaction, per spec.md §9 "explicit backpressure interfaces".
type IncomingStream struct {
	s *Stream
}

// Events returns the channel of inbound payloads, completions, and
// errors for this stream.
func (r *IncomingStream) Events() <-chan Event { return r.s.inbound.Events() }

// Request grants the peer permission to emit up to n further payloads,
// sending a REQUEST_N frame.
func (r *IncomingStream) Request(n int32) error {
	return r.s.conn.requestMore(r.s, n)
}

// Cancel stops the interaction locally and tells the peer to stop
// producing, sending a CANCEL frame. It is idempotent.
func (r *IncomingStream) Cancel() error {
	return r.s.conn.cancelStream(r.s)
}

func (c *Connection) consumeLeaseOrReject() error {
	if !c.cfg.HonorLease {
		return nil
	}
	if c.peerLease.tryConsume() {
		return nil
	}
	metrics.LeaseRejections.Inc()
	return NewError(ErrorCodeRejected, "no lease available")
}

// FireAndForget sends p as a REQUEST_FNF with no reply expected.
func (c *Connection) FireAndForget(ctx context.Context, p Payload) error {
	if err := c.consumeLeaseOrReject(); err != nil {
		return err
	}
	s := newStream(PatternFireAndForget, RoleRequester, c)
	c.reg.allocate(s)
	defer c.reg.release(s.id)
	return c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeRequestFNF, Flags: flagsFor(p), Payload: p})
}

// RequestResponse sends p as a REQUEST_RESPONSE and blocks for the single
// reply, or until ctx is done or the connection closes.
func (c *Connection) RequestResponse(ctx context.Context, p Payload) (Payload, error) {
	if err := c.consumeLeaseOrReject(); err != nil {
		return Payload{}, err
	}
	s := newStream(PatternRequestResponse, RoleRequester, c)
	c.reg.allocate(s)
	metrics.ActiveStreams.WithLabelValues(patternName(PatternRequestResponse)).Inc()

	if err := c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeRequestResponse, Flags: flagsFor(p), Payload: p}); err != nil {
		s.closeBoth()
		return Payload{}, err
	}

	select {
	case ev, ok := <-s.inbound.Events():
		if !ok {
			return Payload{}, ErrTransportClosed
		}
		if ev.Err != nil {
			return Payload{}, ev.Err
		}
		return ev.Payload, nil
	case <-ctx.Done():
		_ = c.cancelStream(s)
		return Payload{}, ctx.Err()
	case <-c.closed:
		return Payload{}, c.Err()
	}
}

// RequestStream sends p as a REQUEST_STREAM with an initial demand of
// initialN and returns a handle to the resulting stream of replies.
func (c *Connection) RequestStream(ctx context.Context, p Payload, initialN int32) (*IncomingStream, error) {
	if err := c.consumeLeaseOrReject(); err != nil {
		return nil, err
	}
	s := newStream(PatternRequestStream, RoleRequester, c)
	c.reg.allocate(s)
	metrics.ActiveStreams.WithLabelValues(patternName(PatternRequestStream)).Inc()
	s.sendDir = dirClosed
	s.inbound.Request(initialN)

	if err := c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeRequestStream, InitialRequestN: uint32(initialN),
		Flags: flagsFor(p), Payload: p}); err != nil {
		s.closeBoth()
		return nil, err
	}
	return &IncomingStream{s: s}, nil
}

// RequestChannel sends p as the first item of a REQUEST_CHANNEL, with an
// initial inbound demand of initialN, and returns a handle to the peer's
// half of the channel. outbound, if non-nil, is drained and sent as this
// side's half of the channel, gated by the peer's REQUEST_N grants.
func (c *Connection) RequestChannel(ctx context.Context, p Payload, initialN int32, outbound *PayloadStream) (*IncomingStream, error) {
	if err := c.consumeLeaseOrReject(); err != nil {
		return nil, err
	}
	s := newStream(PatternRequestChannel, RoleRequester, c)
	c.reg.allocate(s)
	metrics.ActiveStreams.WithLabelValues(patternName(PatternRequestChannel)).Inc()
	s.inbound.Request(initialN)

	if err := c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeRequestChannel, InitialRequestN: uint32(initialN),
		Flags: flagsFor(p), Payload: p}); err != nil {
		s.closeBoth()
		return nil, err
	}

	if outbound != nil {
		go c.runProducer(s, outbound)
	} else {
		s.closeSend()
	}
	return &IncomingStream{s: s}, nil
}

// MetadataPush sends a connection-level METADATA_PUSH frame, which
// carries no stream id and expects no reply.
func (c *Connection) MetadataPush(ctx context.Context, metadata []byte) error {
	return c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeMetadataPush,
		Payload: Payload{Metadata: metadata}})
}

// requestMore grants the peer more credit for s, sending a REQUEST_N
// frame and updating local demand so Events delivers once data arrives.
func (c *Connection) requestMore(s *Stream, n int32) error {
	if n <= 0 {
		return nil
	}
	s.inbound.Request(n)
	return c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeRequestN, RequestN: uint32(n)})
}

// cancelStream stops a locally-initiated interaction, sending CANCEL to
// the peer. Idempotent.
func (c *Connection) cancelStream(s *Stream) error {
	if !s.markCanceled() {
		return nil
	}
	s.inbound.Cancel()
	err := c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeCancel})
	s.closeSend()
	return err
}

func flagsFor(p Payload) Flags {
	if p.HasMetadata() {
		return FlagMetadata
	}
	return 0
}
