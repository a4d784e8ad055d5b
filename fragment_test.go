package rsocket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Fragment_NoOpBelowMTU(t *testing.T) {
	f := &Frame{StreamID: 1, Type: FrameTypeRequestResponse, Payload: Payload{Data: []byte("small")}}
	frames := Fragment(f, 1024)
	require.Len(t, frames, 1)
	assert.Same(t, f, frames[0])
}

func Test_Fragment_SplitsDataAcrossFrames(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 25)
	f := &Frame{StreamID: 5, Type: FrameTypeRequestResponse, Flags: 0, Payload: Payload{Data: data}}
	frames := Fragment(f, 10)
	require.True(t, len(frames) > 1)
	for i, fr := range frames[:len(frames)-1] {
		assert.True(t, fr.Flags.Has(FlagFollows), "frame %d should carry FlagFollows", i)
	}
	assert.False(t, frames[len(frames)-1].Flags.Has(FlagFollows))
}

func Test_Fragment_MetadataBeforeData(t *testing.T) {
	f := &Frame{
		StreamID: 5,
		Type:     FrameTypeRequestResponse,
		Flags:    FlagMetadata,
		Payload:  Payload{Metadata: bytes.Repeat([]byte("m"), 12), Data: bytes.Repeat([]byte("d"), 12)},
	}
	frames := Fragment(f, 8)
	require.True(t, len(frames) > 1)
	// metadata chunks are exhausted before any data chunk appears
	sawData := false
	for _, fr := range frames {
		if len(fr.Payload.Data) > 0 {
			sawData = true
		} else if sawData {
			t.Fatalf("metadata chunk appeared after data chunk")
		}
	}
}

func Test_Reassembler_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 100)
	meta := bytes.Repeat([]byte("z"), 30)
	orig := &Frame{
		StreamID: 11,
		Type:     FrameTypeRequestResponse,
		Flags:    FlagMetadata,
		Payload:  Payload{Metadata: meta, Data: data},
	}
	frames := Fragment(orig, 16)
	require.True(t, len(frames) > 1)

	r := NewReassembler(0)
	var result *Frame
	for _, fr := range frames {
		out, done, err := r.Feed(fr)
		require.NoError(t, err)
		if done {
			result = out
			break
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, meta, result.Payload.Metadata)
	assert.Equal(t, data, result.Payload.Data)
}

func Test_Reassembler_EnforcesArenaCap(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 50)
	orig := &Frame{StreamID: 2, Type: FrameTypeRequestResponse, Payload: Payload{Data: data}}
	frames := Fragment(orig, 10)
	require.True(t, len(frames) > 1)

	r := NewReassembler(20)
	var gotErr error
	for _, fr := range frames {
		_, _, err := r.Feed(fr)
		if err != nil {
			gotErr = err
			break
		}
	}
	require.Error(t, gotErr)
}
