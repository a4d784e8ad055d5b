package rsocket

import (
	"sync"
	"time"
)

// leaseState tracks one side's view of the connection's lease, per spec.md
// §3 "Lease." and §4.F. A Connection holds two: leaseState for leases this
// side has been granted by the peer (consumed on outbound requests when
// honor_lease is enabled), and a responder-side issuedLease describing what
// this side has told the peer it may send.
type leaseState struct {
	mu        sync.Mutex
	remaining int32
	deadline  time.Time
	hasLease  bool
}

// update applies a received LEASE frame's grant, per spec.md §3: "A
// time-bounded grant of N requests."
func (l *leaseState) update(numberOfRequests int32, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remaining = numberOfRequests
	l.deadline = time.Now().Add(ttl)
	l.hasLease = true
}

// tryConsume reports whether a request may be sent right now under the
// lease, decrementing remaining if so. Expiry is measured against the
// local clock at send time, per spec.md §4.E: "clock skew is the sender's
// risk."
func (l *leaseState) tryConsume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasLease || l.remaining <= 0 || time.Now().After(l.deadline) {
		return false
	}
	l.remaining--
	return true
}

// snapshot returns the current remaining count and deadline, for metrics
// and tests.
func (l *leaseState) snapshot() (remaining int32, deadline time.Time, has bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining, l.deadline, l.hasLease
}
