package websocket

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sequencer releases room broadcasts in the order the store committed them.
// Messages are published with their per-room sequence number from whatever
// goroutine persisted them; the sequencer holds early arrivals until the gap
// before them is filled. A gap still open after the timeout is skipped, so a
// commit whose broadcast never arrives cannot stall the room.
//
// A room's state is dropped once nothing is held for it and nobody is
// subscribed; Seed recreates it when someone subscribes again.
type Sequencer struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*roomSequence
	timeout time.Duration
	deliver func(roomID uuid.UUID, payload []byte)
	inUse   func(roomID uuid.UUID) bool
	stopped bool
}

type roomSequence struct {
	next    int64
	pending map[int64][]byte
	timer   *time.Timer
}

// NewSequencer creates a sequencer. inUse reports whether a room still has
// subscribers; a nil inUse keeps every room's state until Stop.
func NewSequencer(timeout time.Duration, deliver func(roomID uuid.UUID, payload []byte), inUse func(roomID uuid.UUID) bool) *Sequencer {
	if inUse == nil {
		inUse = func(uuid.UUID) bool { return true }
	}
	return &Sequencer{
		rooms:   make(map[uuid.UUID]*roomSequence),
		timeout: timeout,
		deliver: deliver,
		inUse:   inUse,
	}
}

// Publish hands over the payload of message seq in roomID. A room the
// sequencer has not seen expects seq 1 first unless Seed said otherwise;
// anything older than the next expected number is delivered at once.
func (s *Sequencer) Publish(roomID uuid.UUID, seq int64, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	rs := s.roomLocked(roomID)
	if seq < rs.next {
		s.deliver(roomID, payload)
		return
	}

	rs.pending[seq] = payload
	s.drainLocked(roomID, rs)
}

// Seed records that every message of roomID up to lastSeq was committed
// before the caller looked. Held messages at or below lastSeq are released,
// and the room never waits for them again.
func (s *Sequencer) Seed(roomID uuid.UUID, lastSeq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	rs := s.roomLocked(roomID)
	if lastSeq < rs.next {
		return
	}

	stale := make([]int64, 0, len(rs.pending))
	for seq := range rs.pending {
		if seq <= lastSeq {
			stale = append(stale, seq)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	for _, seq := range stale {
		payload := rs.pending[seq]
		delete(rs.pending, seq)
		s.deliver(roomID, payload)
	}

	rs.next = lastSeq + 1
	s.drainLocked(roomID, rs)
}

func (s *Sequencer) roomLocked(roomID uuid.UUID) *roomSequence {
	rs, ok := s.rooms[roomID]
	if !ok {
		rs = &roomSequence{next: 1, pending: make(map[int64][]byte)}
		s.rooms[roomID] = rs
	}
	return rs
}

func (s *Sequencer) drainLocked(roomID uuid.UUID, rs *roomSequence) {
	for {
		payload, ok := rs.pending[rs.next]
		if !ok {
			break
		}
		delete(rs.pending, rs.next)
		rs.next++
		s.deliver(roomID, payload)
	}

	switch {
	case len(rs.pending) == 0 && rs.timer != nil:
		rs.timer.Stop()
		rs.timer = nil
	case len(rs.pending) > 0 && rs.timer == nil:
		rs.timer = time.AfterFunc(s.timeout, func() { s.skipGap(roomID) })
	}
	s.evictLocked(roomID, rs)
}

// Forget drops the state of roomID if nothing is held for it and it has no
// subscribers left.
func (s *Sequencer) Forget(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs, ok := s.rooms[roomID]; ok && !s.stopped {
		s.evictLocked(roomID, rs)
	}
}

func (s *Sequencer) evictLocked(roomID uuid.UUID, rs *roomSequence) {
	if len(rs.pending) == 0 && !s.inUse(roomID) {
		delete(s.rooms, roomID)
	}
}

func (s *Sequencer) skipGap(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.rooms[roomID]
	if !ok || s.stopped {
		return
	}
	rs.timer = nil
	if len(rs.pending) == 0 {
		return
	}

	lowest := int64(-1)
	for seq := range rs.pending {
		if lowest == -1 || seq < lowest {
			lowest = seq
		}
	}
	rs.next = lowest
	s.drainLocked(roomID, rs)
}

// Tracked reports whether the sequencer holds state for roomID.
func (s *Sequencer) Tracked(roomID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rooms[roomID]
	return ok
}

// Pending returns how many messages of roomID are waiting for a gap to fill.
func (s *Sequencer) Pending(roomID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs, ok := s.rooms[roomID]; ok {
		return len(rs.pending)
	}
	return 0
}

// Stop cancels gap timers and drops anything still pending.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for _, rs := range s.rooms {
		if rs.timer != nil {
			rs.timer.Stop()
		}
	}
	s.rooms = make(map[uuid.UUID]*roomSequence)
}
