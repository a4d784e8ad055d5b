package rsocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Credit_GrantAndConsume(t *testing.T) {
	c := newCredit()
	assert.False(t, c.tryConsume())
	c.grant(3)
	assert.Equal(t, int32(3), c.get())
	assert.True(t, c.tryConsume())
	assert.True(t, c.tryConsume())
	assert.True(t, c.tryConsume())
	assert.False(t, c.tryConsume())
}

func Test_Credit_SaturatesAtMax(t *testing.T) {
	c := newCredit()
	c.grant(maxCredit)
	c.grant(1)
	assert.Equal(t, maxCredit, c.get())
}

func Test_Credit_WaitAvailable_WakesOnGrant(t *testing.T) {
	c := newCredit()
	done := make(chan struct{})
	woke := make(chan bool, 1)
	go func() {
		woke <- c.waitAvailable(done)
	}()
	time.Sleep(10 * time.Millisecond)
	c.grant(1)
	select {
	case ok := <-woke:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waitAvailable did not wake on grant")
	}
}

func Test_Credit_WaitAvailable_UnblocksOnDone(t *testing.T) {
	c := newCredit()
	done := make(chan struct{})
	result := make(chan bool, 1)
	go func() { result <- c.waitAvailable(done) }()
	close(done)
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waitAvailable did not unblock on done")
	}
}
