package rsocket

import "sync/atomic"

// maxCredit is the 31-bit saturation point for request-N accounting,
// spec.md §3 "credit is a bounded 31-bit integer that saturates at
// 2^31-1".
const maxCredit = int32(maxUint31)

// credit tracks request-N accounting for one direction of one stream,
// grounded on the teacher's sendWindow/ackCh pair (conn.go): an atomic
// counter plus a channel the emitting side can block on when it is
// exhausted.
type credit struct {
	remaining int32 // atomic
	avail     chan struct{}
}

func newCredit() *credit {
	return &credit{avail: make(chan struct{}, 1)}
}

// grant increases remaining by min(n, maxCredit-remaining), per spec.md
// §4.F, and wakes one blocked emitter if remaining was at zero.
func (c *credit) grant(n int32) {
	if n <= 0 {
		return
	}
	for {
		cur := atomic.LoadInt32(&c.remaining)
		next := cur + n
		if next > maxCredit || next < cur {
			next = maxCredit
		}
		if atomic.CompareAndSwapInt32(&c.remaining, cur, next) {
			if cur <= 0 && next > 0 {
				select {
				case c.avail <- struct{}{}:
				default:
				}
			}
			return
		}
	}
}

// tryConsume decrements remaining by one and reports success, or reports
// false without side effects if remaining is already zero. Emitting
// without credit is a local programming error per spec.md §4.F; callers
// must check tryConsume before producing a PAYLOAD(N=1) frame.
func (c *credit) tryConsume() bool {
	for {
		cur := atomic.LoadInt32(&c.remaining)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.remaining, cur, cur-1) {
			return true
		}
	}
}

// waitAvailable blocks until tryConsume would plausibly succeed, or until
// done is closed (stream cancelled/terminated). It does not itself consume
// credit; the caller must still call tryConsume (another goroutine may
// have raced it).
func (c *credit) waitAvailable(done <-chan struct{}) bool {
	if atomic.LoadInt32(&c.remaining) > 0 {
		return true
	}
	select {
	case <-c.avail:
		return true
	case <-done:
		return false
	}
}

// get returns the current remaining credit, for diagnostics/tests.
func (c *credit) get() int32 {
	return atomic.LoadInt32(&c.remaining)
}
