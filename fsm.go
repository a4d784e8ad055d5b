package rsocket

import (
	"context"

	"github.com/rsocket/rsocket-go-core/logx"
	"github.com/rsocket/rsocket-go-core/metrics"
)

// acceptRequest creates a responder-side Stream for an inbound REQUEST_*
// frame and dispatches into the connection's Handler, per spec.md §4.D.
func (c *Connection) acceptRequest(f *Frame) {
	var pattern Pattern
	switch f.Type {
	case FrameTypeRequestFNF:
		pattern = PatternFireAndForget
	case FrameTypeRequestResponse:
		pattern = PatternRequestResponse
	case FrameTypeRequestStream:
		pattern = PatternRequestStream
	case FrameTypeRequestChannel:
		pattern = PatternRequestChannel
	default:
		return
	}

	s := newStream(pattern, RoleResponder, c)
	if !c.reg.registerRemote(f.StreamID, s) {
		_ = c.sendFrame(&Frame{StreamID: f.StreamID, Type: FrameTypeError, ErrorCode: ErrorCodeRejected,
			Payload: Payload{Data: []byte("stream id already in use")}})
		return
	}
	metrics.ActiveStreams.WithLabelValues(patternName(pattern)).Inc()

	switch pattern {
	case PatternFireAndForget:
		s.closeBoth()
		go func() {
			if err := c.handler.HandleFireAndForget(context.Background(), f.Payload); err != nil {
				logx.Log.Debug().Err(err).Str("conn", c.id).Msg("fire-and-forget handler error")
			}
		}()
	case PatternRequestResponse:
		s.recvDir = dirClosed
		go c.serveRequestResponse(s, f.Payload)
	case PatternRequestStream:
		s.recvDir = dirClosed
		s.outboundCredit.grant(int32(f.InitialRequestN))
		go c.serveRequestStream(s, f.Payload)
	case PatternRequestChannel:
		s.outboundCredit.grant(int32(f.InitialRequestN))
		go c.serveRequestChannel(s, f.Payload)
	}
}

func (c *Connection) serveRequestResponse(s *Stream, req Payload) {
	resp, err := c.handler.HandleRequestResponse(context.Background(), req)
	if err != nil {
		c.sendStreamError(s, err)
		s.closeBoth()
		return
	}
	_ = c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypePayload, Flags: FlagNext | FlagComplete, Payload: resp})
	s.closeBoth()
}

func (c *Connection) serveRequestStream(s *Stream, req Payload) {
	ps, err := c.handler.HandleRequestStream(context.Background(), req)
	if err != nil {
		c.sendStreamError(s, err)
		s.closeBoth()
		return
	}
	c.runProducer(s, ps)
}

func (c *Connection) serveRequestChannel(s *Stream, first Payload) {
	ps, err := c.handler.HandleRequestChannel(context.Background(), first, &IncomingStream{s: s})
	if err != nil {
		c.sendStreamError(s, err)
		s.closeBoth()
		return
	}
	c.runProducer(s, ps)
}

// runProducer drains ps, honoring s.outboundCredit (granted by the peer's
// REQUEST_N frames), and emits PAYLOAD frames until ps completes, fails,
// or the peer cancels, per spec.md §4.F.
func (c *Connection) runProducer(s *Stream, ps *PayloadStream) {
	for {
		if !s.outboundCredit.waitAvailable(s.cancelCh) {
			ps.Cancel()
			s.closeSend()
			return
		}
		// Pull exactly one item's worth of demand through to ps for every
		// unit of credit the peer has granted, so ps never buffers ahead of
		// what the wire can actually carry.
		ps.Request(1)
		select {
		case ev, ok := <-ps.Events():
			if !ok {
				s.closeSend()
				return
			}
			if ev.Err != nil {
				c.sendStreamError(s, ev.Err)
				s.closeSend()
				return
			}
			if ev.Done {
				_ = c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypePayload, Flags: FlagComplete})
				s.closeSend()
				return
			}
			for !s.outboundCredit.tryConsume() {
				// waitAvailable can wake on a signal left over from an earlier
				// grant; wait for real credit again and retry with the same ev.
				if !s.outboundCredit.waitAvailable(s.cancelCh) {
					ps.Cancel()
					s.closeSend()
					return
				}
			}
			if err := c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypePayload, Flags: FlagNext, Payload: ev.Payload}); err != nil {
				ps.Cancel()
				s.closeSend()
				return
			}
		case <-s.cancelCh:
			ps.Cancel()
			s.closeSend()
			return
		}
	}
}

func (c *Connection) sendStreamError(s *Stream, err error) {
	code := ErrorCodeApplicationError
	msg := err.Error()
	if rerr, ok := err.(*RSocketError); ok {
		code = rerr.Code
		msg = string(rerr.Data)
	}
	metrics.StreamErrors.WithLabelValues(code.String(), "sent").Inc()
	_ = c.sendFrame(&Frame{StreamID: s.id, Type: FrameTypeError, ErrorCode: code, Payload: Payload{Data: []byte(msg)}})
}

// handleInbound processes one frame addressed to an already-known stream:
// PAYLOAD (possibly fragmented), REQUEST_N credit grants, CANCEL, and
// stream-level ERROR, per spec.md §4.D/§4.F.
func (s *Stream) handleInbound(f *Frame) {
	switch f.Type {
	case FrameTypePayload:
		full, done, err := s.reassemble(f)
		if err != nil {
			s.conn.protocolError(err)
			return
		}
		if !done {
			return
		}
		s.deliverPayload(full)
	case FrameTypeRequestN:
		s.outboundCredit.grant(int32(f.RequestN))
	case FrameTypeCancel:
		if s.markCanceled() {
			metrics.StreamErrors.WithLabelValues(ErrorCodeCanceled.String(), "received").Inc()
		}
	case FrameTypeError:
		metrics.StreamErrors.WithLabelValues(f.ErrorCode.String(), "received").Inc()
		s.fail(NewError(f.ErrorCode, string(f.Payload.Data)))
	}
}

// reassemble feeds f through the stream's Reassembler, returning the
// completed logical frame once a fragmentation sequence (or single
// unfragmented frame) finishes.
func (s *Stream) reassemble(f *Frame) (*Frame, bool, error) {
	return s.reassembler.Feed(f)
}

// deliverPayload routes a fully-reassembled PAYLOAD frame to the
// application side of this stream, per the interaction pattern.
func (s *Stream) deliverPayload(f *Frame) {
	switch s.pattern {
	case PatternRequestResponse:
		s.terminalOnce.Do(func() {
			if f.Flags.Has(FlagNext) {
				s.inbound.pushOnce(Event{Payload: f.Payload})
			} else {
				s.inbound.pushOnce(Event{Done: true})
			}
		})
		s.closeRecv()
		if s.role == RoleRequester {
			s.closeSend()
		}
	default: // request/stream, request/channel
		if f.Flags.Has(FlagNext) {
			if !s.inbound.emit(f.Payload) {
				return
			}
		}
		if f.Flags.Has(FlagComplete) {
			s.terminalOnce.Do(func() { s.inbound.complete() })
			s.closeRecv()
		}
	}
}

// fail delivers a terminal error to the application side and closes both
// directions, used both for peer-sent ERROR frames and for connection
// teardown (Connection.abort).
func (s *Stream) fail(err error) {
	s.terminalOnce.Do(func() {
		s.inbound.pushOnce(Event{Err: err, Done: true})
	})
	s.markCanceled()
	s.closeBoth()
}
