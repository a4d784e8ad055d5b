package rsocket

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Frame is the decoded form of a single RSocket wire frame. Which fields
// are meaningful depends on Type; see the frame-specific accessors in
// spec.md §4.A. Frame is intentionally a flat struct rather than one
// interface implementation per type: the codec is stateless and every
// frame is short-lived, so the allocation and dispatch savings of a
// closed type switch outweigh the type safety a sum type would buy.
type Frame struct {
	StreamID StreamID
	Type     FrameType
	Flags    Flags
	Payload  Payload

	// SETUP
	MajorVersion      uint16
	MinorVersion      uint16
	KeepaliveInterval uint32 // ms, 31-bit
	MaxLifetime       uint32 // ms, 31-bit
	ResumeToken       []byte
	MetadataMIME      string
	DataMIME          string

	// LEASE
	TTL              uint32 // ms, 31-bit
	NumberOfRequests uint32 // 31-bit

	// KEEPALIVE
	LastPosition uint64 // 63-bit

	// REQUEST_STREAM / REQUEST_CHANNEL
	InitialRequestN uint32 // 31-bit

	// REQUEST_N
	RequestN uint32 // 31-bit

	// ERROR
	ErrorCode ErrorCode

	// RESUME / RESUME_OK: unsupported (spec.md §9.H); carried verbatim so
	// the codec never rejects a well-formed frame of these types.
	RawBody []byte
}

const (
	maxUint31          = uint32(0x7FFFFFFF)
	maxMetadataLen     = 1<<24 - 1
	connectionStreamID = StreamID(0)
)

func clamp31(n uint32) uint32 {
	if n > maxUint31 {
		return maxUint31
	}
	return n
}

// Encode serializes f using a pooled scratch buffer and returns a freshly
// allocated copy of the encoded bytes, which the caller owns.
func Encode(f *Frame) ([]byte, error) {
	buf := acquireFrameBuffer()
	defer releaseFrameBuffer(buf)

	header := NewFrameHeader()
	header.SetStreamID(f.StreamID)
	header.SetTypeAndFlags(f.Type, f.Flags)
	buf.Write(header)

	if f.StreamID == connectionStreamID {
		switch f.Type {
		case FrameTypeSetup, FrameTypeLease, FrameTypeKeepalive, FrameTypeError, FrameTypeMetadataPush,
			FrameTypeResume, FrameTypeResumeOK:
		default:
			return nil, errors.Errorf("rsocket: frame type %s is not legal on stream 0", f.Type)
		}
	} else if f.Type == FrameTypeSetup || f.Type == FrameTypeLease || f.Type == FrameTypeResume || f.Type == FrameTypeResumeOK {
		return nil, errors.Errorf("rsocket: frame type %s is only legal on stream 0", f.Type)
	}

	var err error
	switch f.Type {
	case FrameTypeSetup:
		err = encodeSetup(buf, f)
	case FrameTypeLease:
		err = encodeLease(buf, f)
	case FrameTypeKeepalive:
		err = encodeKeepalive(buf, f)
	case FrameTypeRequestResponse, FrameTypeRequestFNF:
		err = encodeMetadataAndPayload(buf, f)
	case FrameTypeRequestStream, FrameTypeRequestChannel:
		writeUint31(buf, f.InitialRequestN)
		err = encodeMetadataAndPayload(buf, f)
	case FrameTypeRequestN:
		writeUint31(buf, f.RequestN)
	case FrameTypeCancel:
		// no body
	case FrameTypePayload:
		err = encodeMetadataAndPayload(buf, f)
	case FrameTypeError:
		var code [4]byte
		binary.BigEndian.PutUint32(code[:], uint32(f.ErrorCode))
		buf.Write(code[:])
		buf.Write(f.Payload.Data)
	case FrameTypeMetadataPush:
		// metadata-push always carries metadata, no length prefix (it is the
		// only frame content after the header).
		buf.Write(f.Payload.Metadata)
	case FrameTypeResume, FrameTypeResumeOK:
		buf.Write(f.RawBody)
	case FrameTypeExt:
		err = encodeMetadataAndPayload(buf, f)
	default:
		err = errors.Errorf("rsocket: unknown frame type 0x%02x", uint8(f.Type))
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func encodeMetadataAndPayload(buf *bytes.Buffer, f *Frame) error {
	if f.Payload.HasMetadata() {
		if len(f.Payload.Metadata) > maxMetadataLen {
			return errors.Errorf("rsocket: metadata length %d exceeds %d", len(f.Payload.Metadata), maxMetadataLen)
		}
		writeUint24(buf, uint32(len(f.Payload.Metadata)))
		buf.Write(f.Payload.Metadata)
	}
	buf.Write(f.Payload.Data)
	return nil
}

func encodeSetup(buf *bytes.Buffer, f *Frame) error {
	var versions [4]byte
	binary.BigEndian.PutUint16(versions[0:2], f.MajorVersion)
	binary.BigEndian.PutUint16(versions[2:4], f.MinorVersion)
	buf.Write(versions[:])
	writeUint31(buf, f.KeepaliveInterval)
	writeUint31(buf, f.MaxLifetime)
	if f.Flags.Has(FlagResumeEnable) {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.ResumeToken)))
		buf.Write(lenBuf[:])
		buf.Write(f.ResumeToken)
	}
	if len(f.MetadataMIME) > 0xFF || len(f.DataMIME) > 0xFF {
		return errors.New("rsocket: MIME type longer than 255 bytes")
	}
	buf.WriteByte(byte(len(f.MetadataMIME)))
	buf.WriteString(f.MetadataMIME)
	buf.WriteByte(byte(len(f.DataMIME)))
	buf.WriteString(f.DataMIME)
	return encodeMetadataAndPayload(buf, f)
}

func encodeLease(buf *bytes.Buffer, f *Frame) error {
	writeUint31(buf, f.TTL)
	writeUint31(buf, f.NumberOfRequests)
	if f.Payload.HasMetadata() {
		writeUint24(buf, uint32(len(f.Payload.Metadata)))
		buf.Write(f.Payload.Metadata)
	}
	return nil
}

func encodeKeepalive(buf *bytes.Buffer, f *Frame) error {
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], f.LastPosition&0x7FFFFFFFFFFFFFFF)
	buf.Write(posBuf[:])
	buf.Write(f.Payload.Data)
	return nil
}

func writeUint31(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], clamp31(n))
	buf.Write(b[:])
}

func writeUint24(buf *bytes.Buffer, n uint32) {
	buf.WriteByte(byte(n >> 16))
	buf.WriteByte(byte(n >> 8))
	buf.WriteByte(byte(n))
}

// Decode parses a single, complete frame from data (with no externally
// added length prefix - that is the transport layer's concern, spec.md
// §4.B). It returns the frame and the number of bytes consumed, which is
// always len(data) for a well-formed frame; ErrNeedMoreData is returned if
// data is shorter than the header or a declared length implies more bytes
// than are present.
func Decode(data []byte) (*Frame, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, ErrNeedMoreData
	}
	header := FrameHeader(data[:HeaderSize])
	f := &Frame{
		StreamID: header.StreamID(),
		Type:     header.Type(),
		Flags:    header.Flags(),
	}
	body := data[HeaderSize:]

	if f.StreamID == connectionStreamID {
		switch f.Type {
		case FrameTypeSetup, FrameTypeLease, FrameTypeKeepalive, FrameTypeError, FrameTypeMetadataPush,
			FrameTypeResume, FrameTypeResumeOK:
		default:
			return nil, 0, errors.Wrapf(NewError(ErrorCodeConnectionError, "illegal frame on stream 0"), "type=%s", f.Type)
		}
	}

	var err error
	switch f.Type {
	case FrameTypeSetup:
		err = decodeSetup(f, body)
	case FrameTypeLease:
		err = decodeLease(f, body)
	case FrameTypeKeepalive:
		err = decodeKeepalive(f, body)
	case FrameTypeRequestResponse, FrameTypeRequestFNF:
		f.Payload, err = decodeMetadataAndPayload(f.Flags, body)
	case FrameTypeRequestStream, FrameTypeRequestChannel:
		if len(body) < 4 {
			return nil, 0, ErrNeedMoreData
		}
		f.InitialRequestN = readUint31(body)
		f.Payload, err = decodeMetadataAndPayload(f.Flags, body[4:])
	case FrameTypeRequestN:
		if len(body) < 4 {
			return nil, 0, ErrNeedMoreData
		}
		f.RequestN = readUint31(body)
	case FrameTypeCancel:
		// no body
	case FrameTypePayload:
		f.Payload, err = decodeMetadataAndPayload(f.Flags, body)
	case FrameTypeError:
		if len(body) < 4 {
			return nil, 0, ErrNeedMoreData
		}
		f.ErrorCode = ErrorCode(binary.BigEndian.Uint32(body[:4]))
		f.Payload.Data = append([]byte(nil), body[4:]...)
	case FrameTypeMetadataPush:
		// METADATA_PUSH carries metadata unconditionally, even a
		// zero-length push; make (not append to nil) keeps it non-nil so
		// Payload.HasMetadata stays true.
		f.Payload.Metadata = make([]byte, len(body))
		copy(f.Payload.Metadata, body)
	case FrameTypeResume, FrameTypeResumeOK:
		f.RawBody = append([]byte(nil), body...)
	case FrameTypeExt:
		f.Payload, err = decodeMetadataAndPayload(f.Flags, body)
	default:
		return nil, 0, errors.Wrapf(NewError(ErrorCodeConnectionError, "unknown frame type"), "type=0x%02x", uint8(f.Type))
	}
	if err != nil {
		return nil, 0, err
	}
	return f, len(data), nil
}

func decodeMetadataAndPayload(flags Flags, body []byte) (Payload, error) {
	var p Payload
	if flags.Has(FlagMetadata) {
		if len(body) < 3 {
			return p, ErrNeedMoreData
		}
		mdLen := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
		body = body[3:]
		if len(body) < mdLen {
			return p, ErrNeedMoreData
		}
		// make, not append(nil, ...): append returns nil itself when mdLen
		// is 0, which would make an explicitly-present-but-empty metadata
		// blob indistinguishable from "no metadata" on the decoded side.
		p.Metadata = make([]byte, mdLen)
		copy(p.Metadata, body[:mdLen])
		body = body[mdLen:]
	}
	p.Data = append([]byte(nil), body...)
	return p, nil
}

func decodeSetup(f *Frame, body []byte) error {
	if len(body) < 12 {
		return ErrNeedMoreData
	}
	f.MajorVersion = binary.BigEndian.Uint16(body[0:2])
	f.MinorVersion = binary.BigEndian.Uint16(body[2:4])
	f.KeepaliveInterval = readUint31(body[4:8])
	f.MaxLifetime = readUint31(body[8:12])
	rest := body[12:]
	if f.Flags.Has(FlagResumeEnable) {
		if len(rest) < 2 {
			return ErrNeedMoreData
		}
		tokLen := int(binary.BigEndian.Uint16(rest[:2]))
		rest = rest[2:]
		if len(rest) < tokLen {
			return ErrNeedMoreData
		}
		f.ResumeToken = append([]byte(nil), rest[:tokLen]...)
		rest = rest[tokLen:]
	}
	if len(rest) < 1 {
		return ErrNeedMoreData
	}
	mmLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < mmLen {
		return ErrNeedMoreData
	}
	f.MetadataMIME = string(rest[:mmLen])
	rest = rest[mmLen:]
	if len(rest) < 1 {
		return ErrNeedMoreData
	}
	dmLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < dmLen {
		return ErrNeedMoreData
	}
	f.DataMIME = string(rest[:dmLen])
	rest = rest[dmLen:]
	payload, err := decodeMetadataAndPayload(f.Flags, rest)
	if err != nil {
		return err
	}
	f.Payload = payload
	return nil
}

func decodeLease(f *Frame, body []byte) error {
	if len(body) < 8 {
		return ErrNeedMoreData
	}
	f.TTL = readUint31(body[0:4])
	f.NumberOfRequests = readUint31(body[4:8])
	rest := body[8:]
	if f.Flags.Has(FlagMetadata) {
		if len(rest) < 3 {
			return ErrNeedMoreData
		}
		mdLen := int(rest[0])<<16 | int(rest[1])<<8 | int(rest[2])
		rest = rest[3:]
		if len(rest) < mdLen {
			return ErrNeedMoreData
		}
		f.Payload.Metadata = make([]byte, mdLen)
		copy(f.Payload.Metadata, rest[:mdLen])
	}
	return nil
}

func decodeKeepalive(f *Frame, body []byte) error {
	if len(body) < 8 {
		return ErrNeedMoreData
	}
	f.LastPosition = binary.BigEndian.Uint64(body[0:8]) & 0x7FFFFFFFFFFFFFFF
	f.Payload.Data = append([]byte(nil), body[8:]...)
	return nil
}

func readUint31(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[0:4]) & maxUint31
}
