package rsocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f *Frame) *Frame {
	t.Helper()
	b, err := Encode(f)
	require.NoError(t, err)
	out, n, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	return out
}

func Test_Codec_RequestResponse(t *testing.T) {
	f := &Frame{
		StreamID: 7,
		Type:     FrameTypeRequestResponse,
		Flags:    FlagMetadata,
		Payload:  Payload{Metadata: []byte("meta"), Data: []byte("data")},
	}
	out := roundTrip(t, f)
	assert.Equal(t, StreamID(7), out.StreamID)
	assert.Equal(t, FrameTypeRequestResponse, out.Type)
	assert.Equal(t, []byte("meta"), out.Payload.Metadata)
	assert.Equal(t, []byte("data"), out.Payload.Data)
}

func Test_Codec_Setup(t *testing.T) {
	f := &Frame{
		StreamID:          connectionStreamID,
		Type:              FrameTypeSetup,
		MajorVersion:      1,
		MinorVersion:      0,
		KeepaliveInterval: 20000,
		MaxLifetime:       60000,
		MetadataMIME:      "application/binary",
		DataMIME:          "application/json",
		Payload:           Payload{Data: []byte("setup-data")},
	}
	out := roundTrip(t, f)
	assert.Equal(t, uint16(1), out.MajorVersion)
	assert.Equal(t, uint32(20000), out.KeepaliveInterval)
	assert.Equal(t, "application/binary", out.MetadataMIME)
	assert.Equal(t, "application/json", out.DataMIME)
	assert.Equal(t, []byte("setup-data"), out.Payload.Data)
}

func Test_Codec_Setup_RejectsOnOtherStream(t *testing.T) {
	f := &Frame{StreamID: 1, Type: FrameTypeSetup, MetadataMIME: "a", DataMIME: "b"}
	_, err := Encode(f)
	assert.Error(t, err)
}

func Test_Codec_RequestStream_InitialN(t *testing.T) {
	f := &Frame{StreamID: 3, Type: FrameTypeRequestStream, InitialRequestN: 42, Payload: Payload{Data: []byte("x")}}
	out := roundTrip(t, f)
	assert.Equal(t, uint32(42), out.InitialRequestN)
}

func Test_Codec_RequestN(t *testing.T) {
	f := &Frame{StreamID: 3, Type: FrameTypeRequestN, RequestN: 100}
	out := roundTrip(t, f)
	assert.Equal(t, uint32(100), out.RequestN)
}

func Test_Codec_Cancel(t *testing.T) {
	f := &Frame{StreamID: 3, Type: FrameTypeCancel}
	out := roundTrip(t, f)
	assert.Equal(t, FrameTypeCancel, out.Type)
	assert.Equal(t, StreamID(3), out.StreamID)
}

func Test_Codec_Error(t *testing.T) {
	f := &Frame{StreamID: 3, Type: FrameTypeError, ErrorCode: ErrorCodeApplicationError, Payload: Payload{Data: []byte("boom")}}
	out := roundTrip(t, f)
	assert.Equal(t, ErrorCodeApplicationError, out.ErrorCode)
	assert.Equal(t, []byte("boom"), out.Payload.Data)
}

func Test_Codec_MetadataPush(t *testing.T) {
	f := &Frame{StreamID: connectionStreamID, Type: FrameTypeMetadataPush, Payload: Payload{Metadata: []byte("m")}}
	out := roundTrip(t, f)
	assert.Equal(t, []byte("m"), out.Payload.Metadata)
}

func Test_Codec_Lease(t *testing.T) {
	f := &Frame{StreamID: connectionStreamID, Type: FrameTypeLease, TTL: 5000, NumberOfRequests: 10}
	out := roundTrip(t, f)
	assert.Equal(t, uint32(5000), out.TTL)
	assert.Equal(t, uint32(10), out.NumberOfRequests)
}

func Test_Codec_Keepalive(t *testing.T) {
	f := &Frame{StreamID: connectionStreamID, Type: FrameTypeKeepalive, Flags: FlagRespond, LastPosition: 999}
	out := roundTrip(t, f)
	assert.Equal(t, uint64(999), out.LastPosition)
	assert.True(t, out.Flags.Has(FlagRespond))
}

func Test_Codec_NeedMoreData(t *testing.T) {
	_, _, err := Decode([]byte{0, 0})
	assert.ErrorIs(t, err, ErrNeedMoreData)
}

func Test_Codec_Payload_NoMetadata(t *testing.T) {
	f := &Frame{StreamID: 9, Type: FrameTypePayload, Flags: FlagNext | FlagComplete, Payload: Payload{Data: []byte("only-data")}}
	out := roundTrip(t, f)
	assert.Nil(t, out.Payload.Metadata)
	assert.Equal(t, []byte("only-data"), out.Payload.Data)
	assert.True(t, out.Flags.Has(FlagComplete))
}

// An explicitly-present but zero-length metadata blob must decode as
// non-nil, distinct from no metadata at all (Payload.HasMetadata).
func Test_Codec_Payload_EmptyButPresentMetadata(t *testing.T) {
	f := &Frame{StreamID: 9, Type: FrameTypePayload, Flags: FlagNext | FlagMetadata,
		Payload: Payload{Metadata: []byte{}, Data: []byte("d")}}
	out := roundTrip(t, f)
	require.NotNil(t, out.Payload.Metadata)
	assert.True(t, out.Payload.HasMetadata())
	assert.Empty(t, out.Payload.Metadata)
}

func Test_Codec_Lease_EmptyButPresentMetadata(t *testing.T) {
	f := &Frame{StreamID: connectionStreamID, Type: FrameTypeLease, Flags: FlagMetadata, TTL: 1000, NumberOfRequests: 1,
		Payload: Payload{Metadata: []byte{}}}
	out := roundTrip(t, f)
	require.NotNil(t, out.Payload.Metadata)
	assert.True(t, out.Payload.HasMetadata())
}

func Test_Codec_MetadataPush_Empty(t *testing.T) {
	f := &Frame{StreamID: connectionStreamID, Type: FrameTypeMetadataPush, Payload: Payload{Metadata: []byte{}}}
	out := roundTrip(t, f)
	require.NotNil(t, out.Payload.Metadata)
	assert.True(t, out.Payload.HasMetadata())
}
