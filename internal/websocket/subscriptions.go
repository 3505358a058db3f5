package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriptions tracks which live connections receive which rooms. It is
// independent of durable membership: a subscription exists only for the
// lifetime of the connection that made it.
type Subscriptions struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]map[uuid.UUID]struct{}
	byRoom map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byConn: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byRoom: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Open starts tracking a connection. Joins are refused for connections that
// are not open.
func (s *Subscriptions) Open(connID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byConn[connID]; !ok {
		s.byConn[connID] = make(map[uuid.UUID]struct{})
	}
}

// Close drops every subscription of the connection and returns the rooms it
// was subscribed to. Closing an unknown connection is a no-op.
func (s *Subscriptions) Close(connID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, ok := s.byConn[connID]
	if !ok {
		return nil
	}
	delete(s.byConn, connID)

	left := make([]uuid.UUID, 0, len(rooms))
	for roomID := range rooms {
		s.removeLocked(roomID, connID)
		left = append(left, roomID)
	}
	return left
}

// Join subscribes the connection to the room. It reports false when the
// subscription already existed.
func (s *Subscriptions) Join(connID, roomID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, ok := s.byConn[connID]
	if !ok {
		return false, ErrConnectionClosed
	}
	if _, ok := rooms[roomID]; ok {
		return false, nil
	}

	rooms[roomID] = struct{}{}
	conns, ok := s.byRoom[roomID]
	if !ok {
		conns = make(map[uuid.UUID]struct{})
		s.byRoom[roomID] = conns
	}
	conns[connID] = struct{}{}
	return true, nil
}

// Leave unsubscribes the connection from the room. It reports false when
// there was nothing to remove.
func (s *Subscriptions) Leave(connID, roomID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, ok := s.byConn[connID]
	if !ok {
		return false
	}
	if _, ok := rooms[roomID]; !ok {
		return false
	}
	delete(rooms, roomID)
	s.removeLocked(roomID, connID)
	return true
}

func (s *Subscriptions) removeLocked(roomID, connID uuid.UUID) {
	conns, ok := s.byRoom[roomID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.byRoom, roomID)
	}
}

// BroadcastTargets returns a snapshot of the connections subscribed to roomID.
func (s *Subscriptions) BroadcastTargets(roomID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.byRoom[roomID]
	targets := make([]uuid.UUID, 0, len(conns))
	for connID := range conns {
		targets = append(targets, connID)
	}
	return targets
}

func (s *Subscriptions) HasSubscribers(roomID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRoom[roomID]) > 0
}

func (s *Subscriptions) Rooms(connID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := s.byConn[connID]
	out := make([]uuid.UUID, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	return out
}

func (s *Subscriptions) IsSubscribed(connID, roomID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byConn[connID][roomID]
	return ok
}
