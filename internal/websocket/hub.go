package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/concord/pkg/log"
)

// Hub is the live connection registry. It owns the room subscriptions and
// the per-room delivery order of broadcasts.
type Hub struct {
	mu sync.RWMutex

	clients map[uuid.UUID]*Client

	// A user may hold several connections at once.
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	subs      *Subscriptions
	sequencer *Sequencer
	closed    bool
	wg        sync.WaitGroup

	// Parent context of every connection; cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub whose broadcasts wait at most gapTimeout for an
// earlier message of the same room.
func NewHub(gapTimeout time.Duration) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		subs:        NewSubscriptions(),
		ctx:         ctx,
		cancel:      cancel,
	}
	h.sequencer = NewSequencer(gapTimeout, h.deliverToRoom, h.subs.HasSubscribers)
	return h
}

// Register adds a client to the registry and opens its subscription set.
func (h *Hub) Register(client *Client) error {
	return h.register(client, 0)
}

// register counts the pumps the caller is about to start while the registry
// is still locked, so Shutdown cannot start waiting before they are added.
func (h *Hub) register(client *Client, pumps int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client
	h.subs.Open(client.ID)
	h.wg.Add(pumps)

	lg := log.L()

	lg.Info().
		Str(log.FieldConnectionID, client.ID.String()).
		Str(log.FieldUserID, client.UserID.String()).
		Msg("client registered")
	return nil
}

// Serve registers the client and runs its pumps until the connection ends.
func (h *Hub) Serve(client *Client, handler EventHandler) error {
	if err := h.register(client, 2); err != nil {
		return err
	}

	logger := log.L().With().
		Str(log.FieldConnectionID, client.ID.String()).
		Str(log.FieldUserID, client.UserID.String()).
		Logger()
	ctx := log.WithLogger(h.ctx, logger)

	go func() {
		defer h.wg.Done()
		client.WritePump()
	}()
	go func() {
		defer h.wg.Done()
		client.ReadPump(ctx, handler)
	}()
	return nil
}

// Unregister removes the connection, closes its send queue and drops all of
// its subscriptions before returning. The rest of each room is told the
// connection left. Calling it again is a no-op.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.unregister(connID, true)
}

// unregister with forget=false leaves sequencer state alone; delivery calls
// it while the sequencer is locked.
func (h *Hub) unregister(connID uuid.UUID, forget bool) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, connID)
	if conns, ok := h.userClients[client.UserID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	rooms := h.subs.Close(connID)
	close(client.send)
	h.mu.Unlock()

	for _, roomID := range rooms {
		h.announce(roomID, client.Connection, EventRoomLeave, forget)
		if forget {
			h.sequencer.Forget(roomID)
		}
	}

	lg := log.L()

	lg.Info().
		Str(log.FieldConnectionID, connID.String()).
		Str(log.FieldUserID, client.UserID.String()).
		Int("rooms", len(rooms)).
		Msg("client unregistered")
}

func (h *Hub) Lookup(connID uuid.UUID) (Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return Connection{}, false
	}
	return client.Connection, true
}

func (h *Hub) UserConnections(userID uuid.UUID) []Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]Connection, 0, len(h.userClients[userID]))
	for _, client := range h.userClients[userID] {
		conns = append(conns, client.Connection)
	}
	return conns
}

func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Join subscribes a live connection to a room. The room's other subscribers
// receive a room_join notice when the subscription is new.
func (h *Hub) Join(connID, roomID uuid.UUID) (bool, error) {
	joined, err := h.subs.Join(connID, roomID)
	if err != nil || !joined {
		return joined, err
	}
	if conn, ok := h.Lookup(connID); ok {
		h.announce(roomID, conn, EventRoomJoin, true)
	}
	return true, nil
}

// Track tells the hub that roomID had committed messages up to lastSeq when
// it was last read from the store.
func (h *Hub) Track(roomID uuid.UUID, lastSeq int64) {
	h.sequencer.Seed(roomID, lastSeq)
}

func (h *Hub) Leave(connID, roomID uuid.UUID) bool {
	if !h.subs.Leave(connID, roomID) {
		return false
	}
	if conn, ok := h.Lookup(connID); ok {
		h.announce(roomID, conn, EventRoomLeave, true)
	}
	h.sequencer.Forget(roomID)
	return true
}

func (h *Hub) BroadcastTargets(roomID uuid.UUID) []uuid.UUID {
	return h.subs.BroadcastTargets(roomID)
}

func (h *Hub) Subscriptions(connID uuid.UUID) []uuid.UUID {
	return h.subs.Rooms(connID)
}

// RoomUsers returns the distinct users with at least one connection
// subscribed to the room.
func (h *Hub) RoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	for _, connID := range h.subs.BroadcastTargets(roomID) {
		if client, ok := h.clients[connID]; ok {
			seen[client.UserID] = struct{}{}
		}
	}

	users := make([]uuid.UUID, 0, len(seen))
	for userID := range seen {
		users = append(users, userID)
	}
	return users
}

// Publish queues payload, the encoded form of message seq, for every
// connection subscribed to roomID. Payloads of one room are released in
// seq order.
func (h *Hub) Publish(roomID uuid.UUID, seq int64, payload []byte) {
	h.sequencer.Publish(roomID, seq, payload)
}

func (h *Hub) deliverToRoom(roomID uuid.UUID, payload []byte) {
	h.deliverExcept(roomID, uuid.Nil, payload, false)
}

// announce tells every other subscriber of roomID that conn joined or left.
// Notices bypass the sequencer; they carry no message order.
func (h *Hub) announce(roomID uuid.UUID, conn Connection, t EventType, forget bool) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}

	evt, err := NewEvent(t, PresencePayload{
		RoomID:   roomID.String(),
		UserID:   conn.UserID,
		Username: conn.Username,
	})
	if err != nil {
		return
	}
	payload, err := evt.Encode()
	if err != nil {
		return
	}
	h.deliverExcept(roomID, conn.ID, payload, forget)
}

func (h *Hub) deliverExcept(roomID, except uuid.UUID, payload []byte, forget bool) {
	h.mu.RLock()
	var slow []uuid.UUID
	for _, connID := range h.subs.BroadcastTargets(roomID) {
		if connID == except {
			continue
		}
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case client.send <- payload:
		default:
			slow = append(slow, connID)
		}
	}
	h.mu.RUnlock()

	for _, connID := range slow {
		lg := log.L()
		lg.Warn().
			Str(log.FieldConnectionID, connID.String()).
			Str(log.FieldRoomID, roomID.String()).
			Msg("send queue full, dropping slow client")
		h.unregister(connID, forget)
	}
}

// SendTo queues payload for one connection. It reports false when the
// connection is gone or was dropped for being too slow.
func (h *Hub) SendTo(connID uuid.UUID, payload []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.RUnlock()
		return false
	}

	select {
	case client.send <- payload:
		h.mu.RUnlock()
		return true
	default:
		h.mu.RUnlock()
		lg := log.L()
		lg.Warn().Str(log.FieldConnectionID, connID.String()).Msg("send queue full, dropping slow client")
		h.Unregister(connID)
		return false
	}
}

// Shutdown refuses new clients, closes every connection and waits for the
// pumps to exit or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	h.cancel()
	h.sequencer.Stop()
	for _, id := range ids {
		h.Unregister(id)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lg := log.L()
		lg.Info().Int("connections", len(ids)).Msg("hub shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
