package rsocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rsocket/rsocket-go-core/config"
	"github.com/rsocket/rsocket-go-core/logx"
	"github.com/rsocket/rsocket-go-core/metrics"
	"github.com/rsocket/rsocket-go-core/transport"
)

// connState is the connection-level lifecycle, spec.md §5:
// CONNECTING -> SETTING_UP -> ACTIVE -> CLOSING -> CLOSED.
type connState int32

const (
	stateConnecting connState = iota
	stateSettingUp
	stateActive
	stateClosing
	stateClosed
)

// Connection is one RSocket connection: a single cooperative owner of the
// underlying Transport, a stream registry, and the connection-level
// machinery (setup handshake, keepalive, lease) layered on top, per
// spec.md §5. It generalizes the teacher's Muxer (muxer.go): a single
// reader goroutine that decodes and dispatches, a single writer goroutine
// that owns transport.Send exclusively, and per-object mutexes instead of
// the teacher's fixed connLookup array and ConnID space.
type Connection struct {
	id        string
	transport transport.Transport
	cfg       config.Options
	isClient  bool
	handler   Handler

	reg *registry

	writeCh chan []byte

	state     atomic.Int32
	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
	closeMu   sync.Mutex

	setupDone chan struct{}
	setupErr  error

	// peerLease is this side's view of the lease the peer has granted,
	// consumed before emitting new requests when cfg.HonorLease is set.
	peerLease *leaseState
	// issuedLease is what this side has granted the peer, refreshed by
	// IssueLease; nil until the first call.
	issuedLease *leaseState

	keepaliveDeadline *keepaliveDeadline
	lastKeepaliveRecv atomic.Int64 // unix nanos
	becameActive      atomic.Bool

	// tombstoneHorizon is how long a released stream id is kept in
	// c.reg.tombstones before keepaliveLoop sweeps it, per spec.md §4.C.1.
	tombstoneHorizon time.Duration

	negotiatedMetadataMIME string
	negotiatedDataMIME     string
}

// Dial performs the client side of the RSocket setup handshake over t and
// returns an active Connection. handler services any responder-side
// streams the peer initiates; it may be nil if this side never accepts
// requests.
func Dial(ctx context.Context, t transport.Transport, cfg config.Options, handler Handler) (*Connection, error) {
	c := newConnection(t, cfg, true, handler)
	go c.readLoop()
	go c.writeLoop()
	c.state.Store(int32(stateSettingUp))
	if err := c.sendSetup(); err != nil {
		c.abort(err)
		return nil, err
	}
	// SETUP has no success acknowledgement in the wire protocol: a server
	// that accepts it sends nothing back, and only answers a rejected one
	// with ERROR on stream 0 (dispatchConnectionFrame aborts the connection
	// on that). So the client has nothing to wait on and moves straight to
	// ACTIVE; setupDone is only meaningful for handleSetup/rejectSetup on
	// the server side, but is still closed here so any code that reads it
	// off a client Connection sees it as already past setup.
	close(c.setupDone)
	select {
	case <-ctx.Done():
		c.abort(ctx.Err())
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closeErr
	default:
	}
	c.state.Store(int32(stateActive))
	metrics.ActiveConnections.Inc()
	c.becameActive.Store(true)
	go c.keepaliveLoop()
	return c, nil
}

// Accept performs the server side of the setup handshake: it waits for
// the peer's SETUP frame, validates it against cfg, and either accepts
// (returning an active Connection) or rejects it with INVALID_SETUP/
// UNSUPPORTED_SETUP and closes the transport.
func Accept(ctx context.Context, t transport.Transport, cfg config.Options, handler Handler) (*Connection, error) {
	c := newConnection(t, cfg, false, handler)
	c.state.Store(int32(stateSettingUp))
	go c.readLoop()
	go c.writeLoop()
	select {
	case <-c.setupDone:
		if c.setupErr != nil {
			return nil, c.setupErr
		}
	case <-ctx.Done():
		c.abort(ctx.Err())
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closeErr
	}
	c.state.Store(int32(stateActive))
	metrics.ActiveConnections.Inc()
	c.becameActive.Store(true)
	go c.keepaliveLoop()
	return c, nil
}

func newConnection(t transport.Transport, cfg config.Options, isClient bool, handler Handler) *Connection {
	if handler == nil {
		handler = BaseHandler{}
	}
	tombstoneHorizon := 2 * cfg.KeepaliveInterval()
	if tombstoneHorizon <= 0 {
		tombstoneHorizon = time.Minute
	}
	c := &Connection{
		id:                uuid.NewString(),
		transport:         t,
		cfg:               cfg,
		isClient:          isClient,
		handler:           handler,
		reg:               newRegistry(isClient, tombstoneHorizon),
		writeCh:           make(chan []byte, 64),
		closed:            make(chan struct{}),
		setupDone:         make(chan struct{}),
		peerLease:         &leaseState{},
		keepaliveDeadline: newKeepaliveDeadline(),
		tombstoneHorizon:  tombstoneHorizon,
	}
	c.lastKeepaliveRecv.Store(time.Now().UnixNano())
	if cfg.MaxLifetimeMs > 0 {
		c.keepaliveDeadline.extend(time.Now().Add(cfg.MaxLifetime()))
	}
	return c
}

// ID returns the uuid assigned to this connection at construction, used
// as a correlation id in logs and metrics.
func (c *Connection) ID() string { return c.id }

// retireStream removes a terminated stream from the registry and updates
// metrics, called by Stream.closeSend/closeRecv/closeBoth once both
// directions are closed.
func (c *Connection) retireStream(s *Stream) {
	c.reg.release(s.id)
	metrics.ActiveStreams.WithLabelValues(patternName(s.pattern)).Dec()
}

// sendFrame encodes f, fragments it per cfg.FragmentSizeBytes, and enqueues
// the resulting bytes on the writer goroutine's channel, blocking if the
// channel is full (the sole form of local backpressure on the outbound
// path, mirroring the teacher's blocking send on writeCh in ConnWrite).
func (c *Connection) sendFrame(f *Frame) error {
	frames := Fragment(f, c.cfg.FragmentSizeBytes)
	for _, fr := range frames {
		b, err := Encode(fr)
		if err != nil {
			return err
		}
		out := make([]byte, len(b))
		copy(out, b)
		select {
		case c.writeCh <- out:
			metrics.FramesSent.WithLabelValues(fr.Type.String()).Inc()
		case <-c.closed:
			return ErrTransportClosed
		}
	}
	return nil
}

func (c *Connection) writeLoop() {
	for {
		select {
		case b := <-c.writeCh:
			if err := c.transport.Send(context.Background(), b); err != nil {
				c.abort(errors.Wrap(err, "rsocket: transport send"))
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) readLoop() {
	for {
		b, err := c.transport.Recv(context.Background())
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				c.abort(ErrTransportClosed)
			} else {
				c.abort(errors.Wrap(err, "rsocket: transport recv"))
			}
			return
		}
		f, _, err := Decode(b)
		if err != nil {
			c.protocolError(err)
			return
		}
		metrics.FramesReceived.WithLabelValues(f.Type.String()).Inc()
		c.dispatch(f)
	}
}

// dispatch routes one decoded inbound frame, per spec.md §5: stream id 0
// is connection-level, any other id is looked up in the registry and
// routed to that Stream, or - for a request-initiating type - used to
// create a new responder-side Stream.
func (c *Connection) dispatch(f *Frame) {
	if f.StreamID == connectionStreamID {
		c.dispatchConnectionFrame(f)
		return
	}

	st := connState(c.state.Load())
	if st == stateSettingUp {
		c.protocolError(errors.New("rsocket: non-setup frame before setup complete"))
		return
	}

	if s := c.reg.lookup(f.StreamID); s != nil {
		s.handleInbound(f)
		return
	}

	if f.Type.IsRequestType() {
		c.acceptRequest(f)
		return
	}

	if c.reg.isTombstoned(f.StreamID) {
		return
	}

	_ = c.sendFrame(&Frame{StreamID: f.StreamID, Type: FrameTypeError, ErrorCode: ErrorCodeInvalid,
		Payload: Payload{Data: []byte("unknown stream id")}})
}

func (c *Connection) dispatchConnectionFrame(f *Frame) {
	switch f.Type {
	case FrameTypeSetup:
		c.handleSetup(f)
	case FrameTypeLease:
		if c.cfg.HonorLease {
			c.peerLease.update(int32(f.NumberOfRequests), time.Duration(f.TTL)*time.Millisecond)
		}
	case FrameTypeKeepalive:
		c.handleKeepalive(f)
	case FrameTypeError:
		c.abort(NewError(f.ErrorCode, string(f.Payload.Data)))
	case FrameTypeMetadataPush:
		c.handler.HandleMetadataPush(context.Background(), f.Payload.Metadata)
	case FrameTypeResume, FrameTypeResumeOK:
		_ = c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeError,
			ErrorCode: ErrorCodeRejectedResume, Payload: Payload{Data: []byte("resume not supported")}})
	default:
		c.protocolError(errors.Errorf("rsocket: frame type %s illegal on stream 0", f.Type))
	}
}

func (c *Connection) sendSetup() error {
	return c.sendFrame(&Frame{
		StreamID:          connectionStreamID,
		Type:              FrameTypeSetup,
		MajorVersion:      1,
		MinorVersion:      0,
		KeepaliveInterval: uint32(c.cfg.KeepaliveIntervalMs),
		MaxLifetime:       uint32(c.cfg.MaxLifetimeMs),
		MetadataMIME:      c.cfg.MetadataMIME,
		DataMIME:          c.cfg.DataMIME,
		Payload:           Payload{Metadata: c.cfg.SetupMetadata, Data: c.cfg.SetupData},
	})
}

func (c *Connection) handleSetup(f *Frame) {
	if c.isClient || connState(c.state.Load()) != stateSettingUp {
		c.protocolError(errors.New("rsocket: unexpected SETUP"))
		return
	}
	if f.MajorVersion != 1 {
		c.rejectSetup(ErrorCodeUnsupportedSetup, "unsupported major version")
		return
	}
	if f.MetadataMIME != c.cfg.MetadataMIME || f.DataMIME != c.cfg.DataMIME {
		c.rejectSetup(ErrorCodeInvalidSetup, "mime type mismatch")
		return
	}
	c.negotiatedMetadataMIME = f.MetadataMIME
	c.negotiatedDataMIME = f.DataMIME
	if f.KeepaliveInterval > 0 {
		c.cfg.KeepaliveIntervalMs = int64(f.KeepaliveInterval)
	}
	if f.MaxLifetime > 0 {
		c.cfg.MaxLifetimeMs = int64(f.MaxLifetime)
	}
	close(c.setupDone)
}

func (c *Connection) rejectSetup(code ErrorCode, msg string) {
	c.setupErr = NewError(code, msg)
	_ = c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeError, ErrorCode: code,
		Payload: Payload{Data: []byte(msg)}})
	close(c.setupDone)
	c.abort(c.setupErr)
}

func (c *Connection) handleKeepalive(f *Frame) {
	c.lastKeepaliveRecv.Store(time.Now().UnixNano())
	if c.cfg.MaxLifetimeMs > 0 {
		c.keepaliveDeadline.extend(time.Now().Add(c.cfg.MaxLifetime()))
	}
	if f.Flags.Has(FlagRespond) {
		_ = c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeKeepalive, Flags: 0})
	}
}

// keepaliveLoop sends outbound KEEPALIVE(R=1) frames on cfg's cadence (if
// any) and independently watches the max-lifetime deadline, since a
// connection with outbound keepalives disabled (interval 0, responding
// only to the peer's own KEEPALIVE) must still enforce the liveness
// deadline the peer promised it would answer within. It also drives
// c.reg.sweep, evicting tombstones for streams released longer than
// tombstoneHorizon ago, per spec.md §4.C.1 ("the same timer that drives
// outbound keepalive"). When outbound keepalives are disabled there is no
// shared timer to piggyback on, so a dedicated ticker on tombstoneHorizon
// takes its place.
func (c *Connection) keepaliveLoop() {
	var tickC <-chan time.Time
	sendKeepalive := c.cfg.KeepaliveIntervalMs > 0
	if sendKeepalive {
		ticker := time.NewTicker(c.cfg.KeepaliveInterval())
		defer ticker.Stop()
		tickC = ticker.C
	} else {
		sweepTicker := time.NewTicker(c.tombstoneHorizon)
		defer sweepTicker.Stop()
		tickC = sweepTicker.C
	}
	for {
		select {
		case <-tickC:
			c.reg.sweep(time.Now())
			if sendKeepalive {
				if err := c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeKeepalive, Flags: FlagRespond}); err != nil {
					return
				}
			}
		case <-c.keepaliveDeadline.wait():
			metrics.KeepaliveMisses.Inc()
			c.abort(errors.New("rsocket: keepalive deadline exceeded"))
			return
		case <-c.closed:
			return
		}
	}
}

// IssueLease grants the peer numberOfRequests requests good for ttl,
// per spec.md §3 "Lease.". Calling it when cfg.HonorLease is false on the
// peer's side has no effect beyond the frame being ignored there.
func (c *Connection) IssueLease(numberOfRequests int32, ttl time.Duration) error {
	if err := c.sendFrame(&Frame{
		StreamID:         connectionStreamID,
		Type:             FrameTypeLease,
		TTL:              uint32(ttl / time.Millisecond),
		NumberOfRequests: uint32(numberOfRequests),
	}); err != nil {
		return err
	}
	if c.issuedLease == nil {
		c.issuedLease = &leaseState{}
	}
	c.issuedLease.update(numberOfRequests, ttl)
	return nil
}

// protocolError sends a connection-level ERROR(CONNECTION_ERROR) and tears
// the connection down, per spec.md §7 condition for malformed input.
func (c *Connection) protocolError(err error) {
	logx.Log.Warn().Str("conn", c.id).Err(err).Msg("rsocket protocol error")
	_ = c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeError, ErrorCode: ErrorCodeConnectionError,
		Payload: Payload{Data: []byte(err.Error())}})
	c.abort(err)
}

// Close initiates a graceful CLOSING -> CLOSED transition, sending
// ERROR(CONNECTION_CLOSE) on stream 0 before tearing the transport down,
// per spec.md §5.
func (c *Connection) Close() error {
	c.state.Store(int32(stateClosing))
	_ = c.sendFrame(&Frame{StreamID: connectionStreamID, Type: FrameTypeError, ErrorCode: ErrorCodeConnectionClose})
	c.abort(nil)
	return nil
}

// abort tears the connection down immediately: every live stream is
// failed, the transport is closed, and Closed() unblocks. err is nil for
// a locally-initiated graceful Close.
func (c *Connection) abort(err error) {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closeErr = err
		c.closeMu.Unlock()
		c.state.Store(int32(stateClosed))
		for _, s := range c.reg.all() {
			s.fail(ErrTransportClosed)
		}
		_ = c.transport.Close("rsocket connection closed")
		close(c.closed)
		if c.becameActive.Load() {
			metrics.ActiveConnections.Dec()
		}
	})
}

// Closed returns a channel closed once the connection has fully torn
// down, for callers awaiting graceful or error-driven shutdown.
func (c *Connection) Closed() <-chan struct{} { return c.closed }

// Err returns the reason the connection closed, or nil after a graceful
// local Close.
func (c *Connection) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

func patternName(p Pattern) string {
	switch p {
	case PatternFireAndForget:
		return "fire_and_forget"
	case PatternRequestResponse:
		return "request_response"
	case PatternRequestStream:
		return "request_stream"
	case PatternRequestChannel:
		return "request_channel"
	default:
		return "unknown"
	}
}
