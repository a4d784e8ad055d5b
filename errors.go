package rsocket

import "fmt"

// ErrorCode is a 32-bit RSocket error code, as carried by an ERROR frame.
type ErrorCode uint32

// Fixed error codes from the RSocket wire protocol (spec.md §4.A).
const (
	ErrorCodeInvalidSetup     ErrorCode = 0x00000001
	ErrorCodeUnsupportedSetup ErrorCode = 0x00000002
	ErrorCodeRejectedSetup    ErrorCode = 0x00000003
	ErrorCodeRejectedResume   ErrorCode = 0x00000004
	ErrorCodeConnectionError  ErrorCode = 0x00000101
	ErrorCodeConnectionClose  ErrorCode = 0x00000102
	ErrorCodeApplicationError ErrorCode = 0x00000201
	ErrorCodeRejected         ErrorCode = 0x00000202
	ErrorCodeCanceled         ErrorCode = 0x00000203
	ErrorCodeInvalid          ErrorCode = 0x00000204
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeInvalidSetup:     "INVALID_SETUP",
	ErrorCodeUnsupportedSetup: "UNSUPPORTED_SETUP",
	ErrorCodeRejectedSetup:    "REJECTED_SETUP",
	ErrorCodeRejectedResume:   "REJECTED_RESUME",
	ErrorCodeConnectionError:  "CONNECTION_ERROR",
	ErrorCodeConnectionClose:  "CONNECTION_CLOSE",
	ErrorCodeApplicationError: "APPLICATION_ERROR",
	ErrorCodeRejected:         "REJECTED",
	ErrorCodeCanceled:         "CANCELED",
	ErrorCodeInvalid:          "INVALID",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_CODE(0x%08x)", uint32(c))
}

// IsConnectionLevel reports whether an ERROR frame with this code must be
// carried on stream id 0, per spec.md §4.A / §7.
func (c ErrorCode) IsConnectionLevel() bool {
	switch c {
	case ErrorCodeInvalidSetup, ErrorCodeUnsupportedSetup, ErrorCodeRejectedSetup,
		ErrorCodeRejectedResume, ErrorCodeConnectionError, ErrorCodeConnectionClose:
		return true
	default:
		return false
	}
}

// RSocketError is an application- or protocol-visible error carrying a wire
// error code and optional error data, as described in spec.md §7.
type RSocketError struct {
	Code ErrorCode
	Data []byte
}

func (e *RSocketError) Error() string {
	if len(e.Data) == 0 {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Data)
}

// NewError builds an *RSocketError with a text message as its error data.
func NewError(code ErrorCode, msg string) *RSocketError {
	var data []byte
	if msg != "" {
		data = []byte(msg)
	}
	return &RSocketError{Code: code, Data: data}
}

// ErrCanceled is returned to callers whose in-flight interaction was
// cancelled locally or by the peer (spec.md §7, condition 6).
var ErrCanceled = NewError(ErrorCodeCanceled, "canceled")

// ErrTransportClosed is surfaced to outstanding requester-side streams when
// the underlying transport is lost (spec.md §7, condition 7).
var ErrTransportClosed = NewError(ErrorCodeConnectionError, "transport closed")

// ErrNeedMoreData is returned by Decode when the supplied bytes do not yet
// contain a complete frame.
var ErrNeedMoreData = fmt.Errorf("rsocket: need more data")
