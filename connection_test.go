package rsocket

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsocket/rsocket-go-core/config"
	"github.com/rsocket/rsocket-go-core/transport"
)

type echoAndCountHandler struct {
	BaseHandler
}

func (echoAndCountHandler) HandleRequestResponse(ctx context.Context, req Payload) (Payload, error) {
	return req, nil
}

func (echoAndCountHandler) HandleRequestStream(ctx context.Context, req Payload) (*PayloadStream, error) {
	return FromSlice([]Payload{{Data: []byte("one")}, {Data: []byte("two")}, {Data: []byte("three")}}), nil
}

// HandleRequestChannel uppercases each inbound item and echoes it back,
// requesting one more from the requester after each, and completes once
// the requester's half completes.
func (echoAndCountHandler) HandleRequestChannel(ctx context.Context, req Payload, inbound *IncomingStream) (*PayloadStream, error) {
	out := NewPayloadStream()
	go func() {
		first := bytes.ToUpper(req.Data)
		if !out.emit(Payload{Data: first}) {
			return
		}
		_ = inbound.Request(1)
		for ev := range inbound.Events() {
			if ev.Err != nil || ev.Done {
				break
			}
			if !out.emit(Payload{Data: bytes.ToUpper(ev.Payload.Data)}) {
				return
			}
			_ = inbound.Request(1)
		}
		out.complete()
	}()
	return out, nil
}

// blockingStreamHandler never completes on its own, so tests can exercise
// CANCEL propagation from the requester through to the producer loop.
type blockingStreamHandler struct {
	BaseHandler
	started chan struct{}
}

func (h blockingStreamHandler) HandleRequestStream(ctx context.Context, req Payload) (*PayloadStream, error) {
	ps := NewPayloadStream()
	go func() {
		close(h.started)
		ps.emit(Payload{Data: []byte("first")})
		<-ps.Cancelled()
	}()
	return ps, nil
}

func dialedPair(t *testing.T, handler Handler) (*Connection, *Connection) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	cfg := config.Defaults()
	cfg.KeepaliveIntervalMs = 0 // disable keepalive churn in tests

	serverReady := make(chan *Connection, 1)
	serverErr := make(chan error, 1)
	go func() {
		s, err := Accept(context.Background(), transport.NewTCP(serverConn), cfg, handler)
		if err != nil {
			serverErr <- err
			return
		}
		serverReady <- s
	}()

	c, err := Dial(context.Background(), transport.NewTCP(clientConn), cfg, nil)
	require.NoError(t, err)

	select {
	case s := <-serverReady:
		return c, s
	case err := <-serverErr:
		t.Fatalf("server accept failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}
	return nil, nil
}

func Test_Connection_SetupHandshake(t *testing.T) {
	c, s := dialedPair(t, BaseHandler{})
	defer c.Close()
	defer s.Close()
	assert.NotEmpty(t, c.ID())
	assert.NotEmpty(t, s.ID())
}

func Test_Connection_RequestResponse(t *testing.T) {
	c, s := dialedPair(t, echoAndCountHandler{})
	defer c.Close()
	defer s.Close()

	resp, err := c.RequestResponse(context.Background(), Payload{Data: []byte("ping")})
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), resp.Data)
}

func Test_Connection_RequestStream(t *testing.T) {
	c, s := dialedPair(t, echoAndCountHandler{})
	defer c.Close()
	defer s.Close()

	stream, err := c.RequestStream(context.Background(), Payload{Data: []byte("go")}, 10)
	require.NoError(t, err)

	var got []string
	for ev := range stream.Events() {
		require.NoError(t, ev.Err)
		if ev.Done {
			break
		}
		got = append(got, string(ev.Payload.Data))
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func Test_Connection_FireAndForget(t *testing.T) {
	c, s := dialedPair(t, BaseHandler{})
	defer c.Close()
	defer s.Close()

	err := c.FireAndForget(context.Background(), Payload{Data: []byte("noop")})
	assert.NoError(t, err)
}

func Test_Connection_RejectsUnsupportedPattern(t *testing.T) {
	c, s := dialedPair(t, BaseHandler{})
	defer c.Close()
	defer s.Close()

	_, err := c.RequestResponse(context.Background(), Payload{Data: []byte("x")})
	require.Error(t, err)
	rerr, ok := err.(*RSocketError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeRejected, rerr.Code)
}

func Test_Connection_RequestChannel(t *testing.T) {
	c, s := dialedPair(t, echoAndCountHandler{})
	defer c.Close()
	defer s.Close()

	outbound := NewPayloadStream()
	incoming, err := c.RequestChannel(context.Background(), Payload{Data: []byte("go")}, 10, outbound)
	require.NoError(t, err)

	go func() {
		outbound.emit(Payload{Data: []byte("rust")})
		outbound.complete()
	}()

	var got []string
	for ev := range incoming.Events() {
		require.NoError(t, ev.Err)
		if ev.Done {
			break
		}
		got = append(got, string(ev.Payload.Data))
	}
	assert.Equal(t, []string{"GO", "RUST"}, got)
}

func Test_Connection_CancelStopsProducer(t *testing.T) {
	h := blockingStreamHandler{started: make(chan struct{})}
	c, s := dialedPair(t, h)
	defer c.Close()
	defer s.Close()

	stream, err := c.RequestStream(context.Background(), Payload{Data: []byte("go")}, 10)
	require.NoError(t, err)

	ev := <-stream.Events()
	require.NoError(t, ev.Err)
	assert.Equal(t, "first", string(ev.Payload.Data))

	require.NoError(t, stream.Cancel())

	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel did not close after cancel")
	}
}

func Test_Connection_LeaseRejectsWithoutGrant(t *testing.T) {
	cfg := config.Defaults()
	cfg.KeepaliveIntervalMs = 0
	cfg.HonorLease = true

	clientConn, serverConn := net.Pipe()
	serverReady := make(chan *Connection, 1)
	go func() {
		s, err := Accept(context.Background(), transport.NewTCP(serverConn), cfg, echoAndCountHandler{})
		require.NoError(t, err)
		serverReady <- s
	}()
	c, err := Dial(context.Background(), transport.NewTCP(clientConn), cfg, nil)
	require.NoError(t, err)
	s := <-serverReady
	defer c.Close()
	defer s.Close()

	_, err = c.RequestResponse(context.Background(), Payload{Data: []byte("x")})
	require.Error(t, err)
	rerr, ok := err.(*RSocketError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeRejected, rerr.Code)
}

func Test_Connection_FragmentsLargePayload(t *testing.T) {
	cfg := config.Defaults()
	cfg.KeepaliveIntervalMs = 0
	cfg.FragmentSizeBytes = 64

	clientConn, serverConn := net.Pipe()
	serverReady := make(chan *Connection, 1)
	go func() {
		s, err := Accept(context.Background(), transport.NewTCP(serverConn), cfg, echoAndCountHandler{})
		require.NoError(t, err)
		serverReady <- s
	}()
	c, err := Dial(context.Background(), transport.NewTCP(clientConn), cfg, nil)
	require.NoError(t, err)
	s := <-serverReady
	defer c.Close()
	defer s.Close()

	large := bytes.Repeat([]byte("a"), 1024)
	resp, err := c.RequestResponse(context.Background(), Payload{Data: large})
	require.NoError(t, err)
	assert.Equal(t, large, resp.Data)
}
