package rsocket

import "fmt"

// FrameType is the 6-bit frame type carried in the second header word.
type FrameType uint8

// Frame types, spec.md §3.
const (
	FrameTypeReserved        FrameType = 0x00
	FrameTypeSetup           FrameType = 0x01
	FrameTypeLease           FrameType = 0x02
	FrameTypeKeepalive       FrameType = 0x03
	FrameTypeRequestResponse FrameType = 0x04
	FrameTypeRequestFNF      FrameType = 0x05
	FrameTypeRequestStream   FrameType = 0x06
	FrameTypeRequestChannel  FrameType = 0x07
	FrameTypeRequestN        FrameType = 0x08
	FrameTypeCancel          FrameType = 0x09
	FrameTypePayload         FrameType = 0x0A
	FrameTypeError           FrameType = 0x0B
	FrameTypeMetadataPush    FrameType = 0x0C
	FrameTypeResume          FrameType = 0x0D
	FrameTypeResumeOK        FrameType = 0x0E
	FrameTypeExt             FrameType = 0x3F
)

var frameTypeNames = map[FrameType]string{
	FrameTypeReserved:        "RESERVED",
	FrameTypeSetup:           "SETUP",
	FrameTypeLease:           "LEASE",
	FrameTypeKeepalive:       "KEEPALIVE",
	FrameTypeRequestResponse: "REQUEST_RESPONSE",
	FrameTypeRequestFNF:      "REQUEST_FNF",
	FrameTypeRequestStream:   "REQUEST_STREAM",
	FrameTypeRequestChannel:  "REQUEST_CHANNEL",
	FrameTypeRequestN:        "REQUEST_N",
	FrameTypeCancel:          "CANCEL",
	FrameTypePayload:         "PAYLOAD",
	FrameTypeError:           "ERROR",
	FrameTypeMetadataPush:    "METADATA_PUSH",
	FrameTypeResume:          "RESUME",
	FrameTypeResumeOK:        "RESUME_OK",
	FrameTypeExt:             "EXT",
}

func (t FrameType) String() string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FRAME_TYPE(0x%02x)", uint8(t))
}

// IsRequestType reports whether t is one of the four frame types that
// initiate a new stream interaction.
func (t FrameType) IsRequestType() bool {
	switch t {
	case FrameTypeRequestResponse, FrameTypeRequestFNF, FrameTypeRequestStream, FrameTypeRequestChannel:
		return true
	default:
		return false
	}
}

// Flags is the 10-bit flags field, stored widened to 16 bits for ease of
// use. Which bits are meaningful depends on the frame's type.
type Flags uint16

// Flag bit values, matching the RSocket 1.0 wire protocol exactly (spec.md
// §4.A: "must be matched exactly for interop").
const (
	FlagMetadata     Flags = 0x0100 // present on most frame types
	FlagIgnore       Flags = 0x0200 // present on most frame types
	FlagResumeEnable Flags = 0x0080 // SETUP
	FlagLease        Flags = 0x0040 // SETUP
	FlagRespond      Flags = 0x0080 // KEEPALIVE
	FlagFollows      Flags = 0x0080 // REQUEST_*, PAYLOAD: fragmentation continues
	FlagComplete     Flags = 0x0040 // PAYLOAD
	FlagNext         Flags = 0x0020 // PAYLOAD

	flagsMask Flags = 0x03FF
)

// Has reports whether every bit in mask is set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }
