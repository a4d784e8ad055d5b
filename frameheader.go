package rsocket

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every RSocket frame header:
// a 4-byte stream id word (top bit reserved, must be zero) followed by a
// 2-byte type+flags word. Frame-type-specific fields and the payload
// follow the header (spec.md §4.A).
const HeaderSize = 6

// StreamID identifies a stream within a connection. 0 always refers to the
// connection itself.
type StreamID uint32

// streamIDMask clears the reserved top bit, since stream ids are 31-bit.
const streamIDMask = uint32(0x7FFFFFFF)

// FrameHeader is the first HeaderSize bytes of an encoded frame. It is a
// thin accessor over a byte slice, in the style of the teacher's
// FrameHeader type, rather than a separate struct copy.
type FrameHeader []byte

// NewFrameHeader returns a zeroed HeaderSize-byte header.
func NewFrameHeader() FrameHeader {
	return make(FrameHeader, HeaderSize)
}

// StreamID returns the 31-bit stream id carried by the header.
func (h FrameHeader) StreamID() StreamID {
	return StreamID(binary.BigEndian.Uint32(h[0:4]) & streamIDMask)
}

// SetStreamID sets the stream id, leaving the reserved top bit clear.
func (h FrameHeader) SetStreamID(id StreamID) {
	binary.BigEndian.PutUint32(h[0:4], uint32(id)&streamIDMask)
}

// Type returns the 6-bit frame type.
func (h FrameHeader) Type() FrameType {
	word := binary.BigEndian.Uint16(h[4:6])
	return FrameType(word >> 10)
}

// Flags returns the 10-bit flags field.
func (h FrameHeader) Flags() Flags {
	word := binary.BigEndian.Uint16(h[4:6])
	return Flags(word) & flagsMask
}

// SetTypeAndFlags packs the frame type and flags into the second header
// word.
func (h FrameHeader) SetTypeAndFlags(t FrameType, f Flags) {
	word := uint16(t)<<10 | uint16(f&flagsMask)
	binary.BigEndian.PutUint16(h[4:6], word)
}

func (h FrameHeader) String() string {
	return fmt.Sprintf("%s [stream=%d flags=0x%03x]", h.Type(), h.StreamID(), h.Flags())
}
