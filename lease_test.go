package rsocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Lease_NoGrantRejects(t *testing.T) {
	var l leaseState
	assert.False(t, l.tryConsume())
}

func Test_Lease_ConsumesWithinGrant(t *testing.T) {
	var l leaseState
	l.update(2, time.Minute)
	assert.True(t, l.tryConsume())
	assert.True(t, l.tryConsume())
	assert.False(t, l.tryConsume())
}

func Test_Lease_ExpiresAfterTTL(t *testing.T) {
	var l leaseState
	l.update(5, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.False(t, l.tryConsume())
}

func Test_Lease_Snapshot(t *testing.T) {
	var l leaseState
	l.update(3, time.Minute)
	remaining, deadline, has := l.snapshot()
	assert.Equal(t, int32(3), remaining)
	assert.True(t, has)
	assert.True(t, deadline.After(time.Now()))
}
