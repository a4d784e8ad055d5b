package rsocket

import "sync"

// Event is one item flowing through a PayloadStream: either a value, a
// terminal completion, or a terminal error. Exactly one of these states
// applies; Err set implies the stream is done, Done true with Err nil
// means a clean completion.
type Event struct {
	Payload Payload
	Err     error
	Done    bool
}

// PayloadStream is the pull-based, backpressured sequence the facade
// exposes for request/stream and request/channel, per spec.md §9 "Reactive
// sources/sinks -> explicit backpressure interfaces": Request grants
// credit, Events delivers Value/Complete/Error, and Cancel stops
// production. It is deliberately channel-shaped (idiomatic Go) rather than
// a literal poll() method, since the design note's intent - no hidden
// buffering, explicit credit - is satisfied equally well by a channel that
// the producer only writes to after credit has been granted.
type PayloadStream struct {
	events chan Event

	mu        sync.Mutex
	requested int64
	reqSignal chan struct{}
	cancelled chan struct{}
	closeOnce sync.Once
}

// NewPayloadStream returns an empty PayloadStream ready for a producer to
// push into via emit/complete/fail and a consumer to drain via Events.
func NewPayloadStream() *PayloadStream {
	return &PayloadStream{
		events:    make(chan Event, 16),
		reqSignal: make(chan struct{}, 1),
		cancelled: make(chan struct{}),
	}
}

// Events returns the channel of delivered items. It is closed after a
// Done or Err event has been delivered, or after Cancel.
func (s *PayloadStream) Events() <-chan Event { return s.events }

// Request grants the producer permission to emit up to n additional
// values.
func (s *PayloadStream) Request(n int32) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.requested += int64(n)
	s.mu.Unlock()
	select {
	case s.reqSignal <- struct{}{}:
	default:
	}
}

// Cancel stops the producer; it is idempotent.
func (s *PayloadStream) Cancel() {
	s.closeOnce.Do(func() { close(s.cancelled) })
}

// Cancelled returns a channel closed once Cancel has been called.
func (s *PayloadStream) Cancelled() <-chan struct{} { return s.cancelled }

// awaitDemand blocks until at least one unit of requested demand is
// available (consuming it) or the stream is cancelled, returning false in
// the latter case.
func (s *PayloadStream) awaitDemand() bool {
	for {
		s.mu.Lock()
		if s.requested > 0 {
			s.requested--
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()
		select {
		case <-s.reqSignal:
			continue
		case <-s.cancelled:
			return false
		}
	}
}

// emit delivers a value, blocking for demand first. It returns false if
// the stream was cancelled before demand arrived.
func (s *PayloadStream) emit(p Payload) bool {
	if !s.awaitDemand() {
		return false
	}
	select {
	case s.events <- Event{Payload: p}:
		return true
	case <-s.cancelled:
		return false
	}
}

// pushOnce delivers a single terminal event without waiting for demand,
// for interactions that never use request-N flow control (the single
// reply of a request/response). Callers must guarantee it is invoked at
// most once per stream.
func (s *PayloadStream) pushOnce(ev Event) {
	select {
	case s.events <- ev:
	case <-s.cancelled:
	}
	close(s.events)
}

// complete delivers a terminal completion and closes Events.
func (s *PayloadStream) complete() {
	select {
	case s.events <- Event{Done: true}:
	case <-s.cancelled:
	}
	close(s.events)
}

// fail delivers a terminal error and closes Events.
func (s *PayloadStream) fail(err error) {
	select {
	case s.events <- Event{Err: err, Done: true}:
	case <-s.cancelled:
	}
	close(s.events)
}

// FromSlice returns a PayloadStream that emits each payload in items, in
// order, then completes, respecting whatever demand the consumer grants.
// Useful for handlers and examples that produce a fixed, already-known
// sequence.
func FromSlice(items []Payload) *PayloadStream {
	s := NewPayloadStream()
	go func() {
		for _, p := range items {
			if !s.emit(p) {
				return
			}
		}
		s.complete()
	}()
	return s
}
