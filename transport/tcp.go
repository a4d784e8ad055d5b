package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single length-prefixed frame, since the length
// prefix is 24 bits (spec.md §4.B "a 24-bit big-endian length prefix").
const MaxFrameSize = 1<<24 - 1

// TCP wraps a net.Conn (or any io.ReadWriteCloser over a byte stream) with
// the 24-bit big-endian length-prefix framing spec.md §4.B/§6 mandates for
// transports that aren't natively frame-bounded. It is grounded on the
// teacher's Muxer, which embeds an io.ReadWriteCloser and drives it through
// a buffered reader (muxer.go's ReadFrom using bufio semantics).
type TCP struct {
	conn net.Conn
	r    *bufio.Reader

	wmu    sync.Mutex
	rmu    sync.Mutex
	closed chan struct{}
	once   sync.Once
}

// NewTCP wraps conn for length-prefixed frame transport.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{
		conn:   conn,
		r:      bufio.NewReaderSize(conn, 64*1024),
		closed: make(chan struct{}),
	}
}

func (t *TCP) Send(ctx context.Context, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return errors.Errorf("transport: frame of %d bytes exceeds max %d", len(frame), MaxFrameSize)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	var lenBuf [3]byte
	lenBuf[0] = byte(len(frame) >> 16)
	lenBuf[1] = byte(len(frame) >> 8)
	lenBuf[2] = byte(len(frame))
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	if _, err := t.conn.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "transport: write length prefix")
	}
	if _, err := t.conn.Write(frame); err != nil {
		return errors.Wrap(err, "transport: write frame")
	}
	return nil
}

func (t *TCP) Recv(ctx context.Context) ([]byte, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	}
	var lenBuf [3]byte
	if _, err := io.ReadFull(t.r, lenBuf[:]); err != nil {
		if isClosedErr(err) {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "transport: read length prefix")
	}
	n := int(lenBuf[0])<<16 | int(lenBuf[1])<<8 | int(lenBuf[2])
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		if isClosedErr(err) {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "transport: read frame body")
	}
	return buf, nil
}

func (t *TCP) Close(reason string) error {
	t.once.Do(func() { close(t.closed) })
	return t.conn.Close()
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
