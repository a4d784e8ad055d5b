package rsocket

import (
	"sync"
	"time"
)

// registry maps stream ids to their Stream, allocates new locally-
// initiated ids and retains terminated ids in a tombstone set for a
// bounded horizon, generalizing the teacher's fixed-size connLookup table
// (muxer.go) to the unbounded 31-bit RSocket id space.
type registry struct {
	mu         sync.Mutex
	streams    map[StreamID]*Stream
	tombstones map[StreamID]time.Time
	nextID     StreamID
	horizon    time.Duration
}

// newRegistry returns an empty registry. client selects whether locally
// allocated ids are odd (client/requester-initiated side) or even
// (server/accepting side), per spec.md §3 "Stream.".
func newRegistry(client bool, tombstoneHorizon time.Duration) *registry {
	start := StreamID(2)
	if client {
		start = StreamID(1)
	}
	return &registry{
		streams:    make(map[StreamID]*Stream),
		tombstones: make(map[StreamID]time.Time),
		nextID:     start,
		horizon:    tombstoneHorizon,
	}
}

// allocate returns a fresh, never-before-used stream id for a locally
// initiated stream and registers s under it.
func (r *registry) allocate(s *Stream) StreamID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID += 2
	s.id = id
	r.streams[id] = s
	return id
}

// registerRemote inserts a responder-side stream created in response to
// an inbound request frame, under the id the peer chose.
func (r *registry) registerRemote(id StreamID, s *Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.streams[id]; exists {
		return false
	}
	if _, tombstoned := r.tombstones[id]; tombstoned {
		return false
	}
	s.id = id
	r.streams[id] = s
	return true
}

// lookup returns the Stream for id, or nil if it is unknown (never
// allocated, or already terminated and tombstoned).
func (r *registry) lookup(id StreamID) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[id]
}

// isTombstoned reports whether id belongs to a recently-terminated stream,
// used to distinguish "late frame for a stream we just closed" (drop
// silently) from "frame for a stream id we've never seen" (protocol
// error), per spec.md §4.C.
func (r *registry) isTombstoned(id StreamID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tombstones[id]
	return ok
}

// release removes id from the live set and tombstones it for horizon,
// per spec.md §4.C.1.
func (r *registry) release(id StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
	r.tombstones[id] = time.Now().Add(r.horizon)
}

// sweep evicts tombstones whose horizon has elapsed. It should be driven
// off the same timer as the connection's outbound keepalive.
func (r *registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, deadline := range r.tombstones {
		if now.After(deadline) {
			delete(r.tombstones, id)
		}
	}
}

// count returns the number of live streams, for metrics.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// all returns a snapshot of the live streams, for connection teardown.
func (r *registry) all() []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}
