package rsocket

import "github.com/pkg/errors"

// Fragment splits f into a head frame plus zero or more PAYLOAD
// continuation frames, each bearing FlagFollows except the last, so that
// no encoded frame exceeds mtu bytes of combined metadata+data (spec.md
// §4.A "Fragmentation"). mtu <= 0 disables fragmentation and Fragment
// returns []*Frame{f} unchanged.
//
// Metadata is always sent to completion before any data byte is emitted,
// matching the wire rule that a fragmentation sequence may not interleave
// metadata and data runs.
func Fragment(f *Frame, mtu int) []*Frame {
	if mtu <= 0 || f.Payload.byteLen() <= mtu {
		return []*Frame{f}
	}

	hasMetadata := f.Payload.HasMetadata()
	remainingMeta := f.Payload.Metadata
	remainingData := f.Payload.Data
	terminalFlags := f.Flags & (FlagNext | FlagComplete)

	var frames []*Frame
	for first := true; ; first = false {
		budget := mtu
		var chunkMeta, chunkData []byte

		if hasMetadata && (len(remainingMeta) > 0 || first) {
			take := budget
			if take > len(remainingMeta) {
				take = len(remainingMeta)
			}
			chunkMeta = remainingMeta[:take]
			remainingMeta = remainingMeta[take:]
			budget -= take
		}
		if budget > 0 && len(remainingData) > 0 {
			take := budget
			if take > len(remainingData) {
				take = len(remainingData)
			}
			chunkData = remainingData[:take]
			remainingData = remainingData[take:]
		}

		more := len(remainingMeta) > 0 || len(remainingData) > 0

		frame := &Frame{StreamID: f.StreamID}
		if first {
			*frame = *f
			frame.Payload = Payload{}
		} else {
			frame.Type = FrameTypePayload
			frame.Flags = terminalFlags
		}
		if hasMetadata && (len(chunkMeta) > 0 || first) {
			frame.Payload.Metadata = chunkMeta
			frame.Flags |= FlagMetadata
		}
		frame.Payload.Data = chunkData
		if more {
			frame.Flags |= FlagFollows
		} else {
			frame.Flags &^= FlagFollows
		}

		frames = append(frames, frame)
		if !more {
			break
		}
	}
	return frames
}

// Reassembler accumulates a fragmented frame sequence for a single stream
// into one logical Frame, enforcing a bounded arena (spec.md §4.A,
// "Reassembly buffer limits are configurable; exceeding them produces
// CONNECTION_ERROR", and §9 "Fragmentation buffering -> bounded arena per
// stream").
type Reassembler struct {
	maxBytes int
	head     *Frame
	metadata []byte
	data     []byte
	active   bool
}

// NewReassembler returns a Reassembler that rejects sequences whose
// combined metadata+data would exceed maxBytes.
func NewReassembler(maxBytes int) *Reassembler {
	return &Reassembler{maxBytes: maxBytes}
}

// Feed adds one frame of a fragmentation sequence. If f does not carry
// FlagFollows, the sequence is complete and the reassembled Frame is
// returned with done=true. The Reassembler resets itself after a
// completed or failed sequence.
func (r *Reassembler) Feed(f *Frame) (result *Frame, done bool, err error) {
	if !r.active {
		r.head = &Frame{StreamID: f.StreamID, Type: f.Type, Flags: f.Flags}
		copyNonPayloadFields(r.head, f)
		r.active = true
	}
	if f.Payload.HasMetadata() {
		r.metadata = append(r.metadata, f.Payload.Metadata...)
	}
	r.data = append(r.data, f.Payload.Data...)

	if r.maxBytes > 0 && len(r.metadata)+len(r.data) > r.maxBytes {
		r.reset()
		return nil, false, errors.Wrap(NewError(ErrorCodeConnectionError, "reassembly buffer exceeded"), "fragment")
	}

	if f.Flags.Has(FlagFollows) {
		return nil, false, nil
	}

	out := r.head
	out.Flags = f.Flags &^ FlagFollows
	if len(r.metadata) > 0 || f.Payload.HasMetadata() {
		out.Payload.Metadata = r.metadata
	}
	out.Payload.Data = r.data
	r.reset()
	return out, true, nil
}

func (r *Reassembler) reset() {
	r.head = nil
	r.metadata = nil
	r.data = nil
	r.active = false
}

// copyNonPayloadFields copies the type-specific fields (SETUP/REQUEST_N/
// etc.) carried only by the head fragment onto the accumulator.
func copyNonPayloadFields(dst, src *Frame) {
	dst.MajorVersion = src.MajorVersion
	dst.MinorVersion = src.MinorVersion
	dst.KeepaliveInterval = src.KeepaliveInterval
	dst.MaxLifetime = src.MaxLifetime
	dst.ResumeToken = src.ResumeToken
	dst.MetadataMIME = src.MetadataMIME
	dst.DataMIME = src.DataMIME
	dst.TTL = src.TTL
	dst.NumberOfRequests = src.NumberOfRequests
	dst.LastPosition = src.LastPosition
	dst.InitialRequestN = src.InitialRequestN
	dst.RequestN = src.RequestN
	dst.ErrorCode = src.ErrorCode
}
