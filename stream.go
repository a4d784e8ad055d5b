package rsocket

import (
	"sync"
	"sync/atomic"
)

// Role distinguishes which side of a single stream interaction this
// endpoint is playing - independent of the connection's client/server
// role, since every connection plays requester on some streams and
// responder on others (spec.md §1 "requester/responder duality").
type Role uint8

const (
	RoleRequester Role = iota
	RoleResponder
)

// Pattern is one of the four interaction patterns that own per-stream
// state (metadata-push has none, spec.md §4.D).
type Pattern uint8

const (
	PatternFireAndForget Pattern = iota
	PatternRequestResponse
	PatternRequestStream
	PatternRequestChannel
)

// direction tracks one half (send or receive) of a stream's lifecycle, per
// spec.md §3 "completion flags for each direction.".
type direction uint8

const (
	dirOpen direction = iota
	dirClosed
)

// Stream holds all per-interaction state: identity, pattern, credit in
// both directions, the fragment reassembly arena, and the application-
// facing sink/source. It is the generalization of the teacher's Conn/
// Exchange (conn.go, exchange.go) from RAP's single request-response
// pattern to RSocket's four patterns.
type Stream struct {
	id      StreamID
	pattern Pattern
	role    Role // this endpoint's role on this particular stream
	conn    *Connection

	mu       sync.Mutex
	sendDir  direction
	recvDir  direction
	canceled bool
	retired  bool
	cancelCh chan struct{}

	// terminalOnce guards delivery of this stream's single terminal event
	// (reply, completion, or error) to inbound, since more than one of
	// deliverPayload/fail/the responder's own completion path can race to
	// finish a stream.
	terminalOnce sync.Once

	// outboundCredit is how many PAYLOAD(N=1) frames this endpoint may still
	// emit before it must wait for REQUEST_N (meaningful when role is
	// RoleResponder for stream/channel, or RoleRequester for the requester's
	// outbound half of a channel).
	outboundCredit *credit

	reassembler *Reassembler

	// inbound delivers payloads arriving from the peer to the local
	// application (the requester's view of a stream, or the responder's
	// view of a channel's client-to-server half).
	inbound *PayloadStream

	serialNumber uint32
}

var streamSerial uint32

func newStream(pattern Pattern, role Role, conn *Connection) *Stream {
	return &Stream{
		pattern:        pattern,
		role:           role,
		conn:           conn,
		outboundCredit: newCredit(),
		reassembler:    NewReassembler(conn.cfg.ReassemblyMaxBytes),
		inbound:        NewPayloadStream(),
		cancelCh:       make(chan struct{}),
		serialNumber:   atomic.AddUint32(&streamSerial, 1),
	}
}

func (s *Stream) closeSend() {
	s.mu.Lock()
	s.sendDir = dirClosed
	done := s.recvDir == dirClosed && !s.retired
	if done {
		s.retired = true
	}
	s.mu.Unlock()
	if done {
		s.conn.retireStream(s)
	}
}

func (s *Stream) closeRecv() {
	s.mu.Lock()
	s.recvDir = dirClosed
	done := s.sendDir == dirClosed && !s.retired
	if done {
		s.retired = true
	}
	s.mu.Unlock()
	if done {
		s.conn.retireStream(s)
	}
}

func (s *Stream) closeBoth() {
	s.mu.Lock()
	s.sendDir = dirClosed
	s.recvDir = dirClosed
	done := !s.retired
	if done {
		s.retired = true
	}
	s.mu.Unlock()
	if done {
		s.conn.retireStream(s)
	}
}

func (s *Stream) isSendClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendDir == dirClosed
}

func (s *Stream) isRecvClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvDir == dirClosed
}

func (s *Stream) markCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canceled {
		return false
	}
	s.canceled = true
	close(s.cancelCh)
	return true
}

func (s *Stream) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}
