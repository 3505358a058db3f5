package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/services"
	ws "github.com/thereayou/concord/internal/websocket"
	"github.com/thereayou/concord/pkg/log"
)

// eventFunc handles one inbound event and returns what is sent back to the
// originating connection.
type eventFunc func(ctx context.Context, conn ws.Connection, data json.RawMessage) ([]ws.Event, error)

// Subscriber manages the live room subscriptions of connections.
type Subscriber interface {
	Join(connID, roomID uuid.UUID) (bool, error)
	Track(roomID uuid.UUID, lastSeq int64)
	Leave(connID, roomID uuid.UUID) bool
	RoomUsers(roomID uuid.UUID) []uuid.UUID
}

// MessageHandler dispatches realtime events by type.
type MessageHandler struct {
	subs     Subscriber
	rooms    *services.RoomService
	messages *services.MessageService
	handlers map[ws.EventType]eventFunc
}

func NewMessageHandler(subs Subscriber, rooms *services.RoomService, messages *services.MessageService) *MessageHandler {
	h := &MessageHandler{
		subs:     subs,
		rooms:    rooms,
		messages: messages,
	}
	h.handlers = map[ws.EventType]eventFunc{
		ws.EventJoinRoom:    h.joinRoom,
		ws.EventLeaveRoom:   h.leaveRoom,
		ws.EventSendMessage: h.sendMessage,
		ws.EventPing:        h.ping,
	}
	return h
}

// HandleEvent implements websocket.EventHandler. Failures become a single
// error event for the originating connection.
func (h *MessageHandler) HandleEvent(ctx context.Context, conn ws.Connection, evt ws.Event) []ws.Event {
	fn, ok := h.handlers[evt.Type]
	if !ok {
		return []ws.Event{ws.ErrorEvent(ws.CodeBadRequest, fmt.Sprintf("unknown event type %q", evt.Type))}
	}

	ctx = log.WithLogger(ctx, log.Ctx(ctx).With().Str(log.FieldEvent, string(evt.Type)).Logger())

	out, err := fn(ctx, conn, evt.Data)
	if err != nil {
		return []ws.Event{errorEvent(ctx, err)}
	}
	return out
}

func (h *MessageHandler) joinRoom(ctx context.Context, conn ws.Connection, data json.RawMessage) ([]ws.Event, error) {
	var payload ws.RoomPayload
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(payload.RoomID)
	if err != nil {
		return nil, err
	}

	room, err := h.rooms.AuthorizeSubscription(ctx, roomID, conn.UserID)
	if err != nil {
		return nil, err
	}

	// Subscribe before seeding the sequence, so the room's state cannot be
	// dropped in between.
	if _, err := h.subs.Join(conn.ID, roomID); err != nil {
		if errors.Is(err, ws.ErrConnectionClosed) {
			// Disconnected while joining; nobody is left to answer.
			return nil, nil
		}
		return nil, err
	}
	h.subs.Track(room.ID, room.LastSeq)

	log.Ctx(ctx).Debug().Str(log.FieldRoomID, roomID.String()).Msg("joined room")

	joined, err := ws.NewEvent(ws.EventRoomJoined, ws.RoomPayload{RoomID: roomID.String()})
	if err != nil {
		return nil, err
	}
	users, err := ws.NewEvent(ws.EventRoomUsers, ws.RoomUsersPayload{
		RoomID:  roomID.String(),
		UserIDs: h.subs.RoomUsers(roomID),
	})
	if err != nil {
		return nil, err
	}
	return []ws.Event{joined, users}, nil
}

func (h *MessageHandler) leaveRoom(ctx context.Context, conn ws.Connection, data json.RawMessage) ([]ws.Event, error) {
	var payload ws.RoomPayload
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(payload.RoomID)
	if err != nil {
		return nil, err
	}

	h.subs.Leave(conn.ID, roomID)
	return single(ws.EventRoomLeft, ws.RoomPayload{RoomID: roomID.String()})
}

// sendMessage answers nothing on success: the sender sees its own message
// through the room broadcast when it is subscribed.
func (h *MessageHandler) sendMessage(ctx context.Context, conn ws.Connection, data json.RawMessage) ([]ws.Event, error) {
	var payload ws.SendMessagePayload
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(payload.RoomID)
	if err != nil {
		return nil, err
	}

	if _, err := h.messages.SendMessage(ctx, conn.UserID, roomID, payload.Content); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *MessageHandler) ping(context.Context, ws.Connection, json.RawMessage) ([]ws.Event, error) {
	return single(ws.EventPong, nil)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing event data", services.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed event data", services.ErrValidation)
	}
	return nil
}

// parseRoomID treats an id that cannot name a room like an unknown room.
func parseRoomID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: room_id is required", services.ErrValidation)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("room %q: %w", raw, services.ErrNotFound)
	}
	return id, nil
}

func single(t ws.EventType, data interface{}) ([]ws.Event, error) {
	evt, err := ws.NewEvent(t, data)
	if err != nil {
		return nil, err
	}
	return []ws.Event{evt}, nil
}
