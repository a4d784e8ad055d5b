package rsocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PayloadStream_EmitWaitsForDemand(t *testing.T) {
	s := NewPayloadStream()
	emitted := make(chan bool, 1)
	go func() { emitted <- s.emit(Payload{Data: []byte("x")}) }()

	select {
	case <-emitted:
		t.Fatal("emit should not complete before demand is granted")
	case <-time.After(20 * time.Millisecond):
	}

	s.Request(1)
	select {
	case ok := <-emitted:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("emit did not unblock after Request")
	}

	ev := <-s.Events()
	assert.Equal(t, []byte("x"), ev.Payload.Data)
}

func Test_PayloadStream_CancelUnblocksEmit(t *testing.T) {
	s := NewPayloadStream()
	result := make(chan bool, 1)
	go func() { result <- s.emit(Payload{}) }()
	s.Cancel()
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("emit did not unblock on cancel")
	}
}

func Test_PayloadStream_FromSlice(t *testing.T) {
	items := []Payload{{Data: []byte("a")}, {Data: []byte("b")}}
	s := FromSlice(items)
	s.Request(2)
	var got []string
	for ev := range s.Events() {
		if ev.Done {
			break
		}
		got = append(got, string(ev.Payload.Data))
	}
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, "b", got[1])
}
