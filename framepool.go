package rsocket

import (
	"bytes"
	"sync"
)

// framePool recycles outbound frame buffers, grounded on the teacher's
// sync.Pool-backed FrameData/FrameDataFree pair (framepool.go). Inbound
// frames are never pooled: once a payload is handed to the application it
// is owned by the application, not shared with the connection loop.
var framePool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// acquireFrameBuffer returns a zero-length buffer ready to be filled by an
// encoder.
func acquireFrameBuffer() *bytes.Buffer {
	buf := framePool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// releaseFrameBuffer returns buf to the pool once its bytes have been
// handed off to the transport.
func releaseFrameBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	const maxPooled = 64 * 1024
	if buf.Cap() > maxPooled {
		return
	}
	framePool.Put(buf)
}
