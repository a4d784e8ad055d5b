package rsocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Registry_AllocateIsOddForClient(t *testing.T) {
	r := newRegistry(true, time.Minute)
	s1 := &Stream{}
	s2 := &Stream{}
	id1 := r.allocate(s1)
	id2 := r.allocate(s2)
	assert.Equal(t, StreamID(1), id1)
	assert.Equal(t, StreamID(3), id2)
}

func Test_Registry_AllocateIsEvenForServer(t *testing.T) {
	r := newRegistry(false, time.Minute)
	s1 := &Stream{}
	id1 := r.allocate(s1)
	assert.Equal(t, StreamID(2), id1)
}

func Test_Registry_RegisterRemoteRejectsDuplicate(t *testing.T) {
	r := newRegistry(false, time.Minute)
	s1 := &Stream{}
	s2 := &Stream{}
	assert.True(t, r.registerRemote(5, s1))
	assert.False(t, r.registerRemote(5, s2))
}

func Test_Registry_LookupAndRelease(t *testing.T) {
	r := newRegistry(true, time.Minute)
	s := &Stream{}
	id := r.allocate(s)
	assert.Same(t, s, r.lookup(id))
	r.release(id)
	assert.Nil(t, r.lookup(id))
	assert.True(t, r.isTombstoned(id))
}

func Test_Registry_SweepEvictsExpiredTombstones(t *testing.T) {
	r := newRegistry(true, time.Millisecond)
	s := &Stream{}
	id := r.allocate(s)
	r.release(id)
	time.Sleep(5 * time.Millisecond)
	r.sweep(time.Now())
	assert.False(t, r.isTombstoned(id))
}

func Test_Registry_Count(t *testing.T) {
	r := newRegistry(true, time.Minute)
	r.allocate(&Stream{})
	r.allocate(&Stream{})
	assert.Equal(t, 2, r.count())
}
