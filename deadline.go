package rsocket

import (
	"sync"
	"time"
)

// keepaliveDeadline tracks the point in time by which this connection must
// have heard from the peer again - a KEEPALIVE, per spec.md §4.E.1's
// max_lifetime_ms - firing wait()'s channel once that point passes.
// extend is called from readLoop's goroutine (handleKeepalive) while wait
// is read from keepaliveLoop's goroutine, and time.Timer's Reset/Stop and
// its channel are not safe to use concurrently across goroutines that way,
// so each extend swaps in a fresh timer and channel under a mutex rather
// than resetting one Timer in place.
type keepaliveDeadline struct {
	mu      sync.Mutex
	timer   *time.Timer
	expired chan struct{}
}

func newKeepaliveDeadline() *keepaliveDeadline {
	return &keepaliveDeadline{expired: make(chan struct{})}
}

// extend pushes the deadline out to t, discarding whatever timer was
// previously pending. If t has already passed, the deadline fires
// immediately.
func (d *keepaliveDeadline) extend(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		<-d.expired
	}

	if dur := time.Until(t); dur > 0 {
		d.expired = make(chan struct{})
		expired := d.expired
		d.timer = time.AfterFunc(dur, func() { close(expired) })
		return
	}

	d.timer = nil
	d.expired = make(chan struct{})
	close(d.expired)
}

// wait returns the channel that closes once the current deadline passes.
func (d *keepaliveDeadline) wait() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expired
}
