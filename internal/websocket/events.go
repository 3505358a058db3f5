package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// Client to server.
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"
	EventPing        EventType = "ping"

	// Server to client.
	EventReceiveMessage EventType = "receive_message"
	EventError          EventType = "error"
	EventRoomJoined     EventType = "room_joined"
	EventRoomLeft       EventType = "room_left"
	EventPong           EventType = "pong"

	// Presence, scoped to one room's subscribers.
	EventRoomUsers EventType = "room_users"
	EventRoomJoin  EventType = "room_join"
	EventRoomLeave EventType = "room_leave"
)

// Error codes carried by EventError.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
)

// Event is the envelope of every frame on the realtime channel.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Room ids arrive as strings so that a malformed id can be reported as an
// unknown room rather than a decoding failure.
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// PresencePayload carries a room_join or room_leave notice.
type PresencePayload struct {
	RoomID   string    `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// RoomUsersPayload lists the users currently subscribed to a room.
type RoomUsersPayload struct {
	RoomID  string      `json:"room_id"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent wraps data in an envelope stamped with the current time.
func NewEvent(t EventType, data interface{}) (Event, error) {
	evt := Event{Type: t, Timestamp: time.Now().UTC()}
	if data == nil {
		return evt, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	evt.Data = raw
	return evt, nil
}

// ErrorEvent builds an EventError. Its payload always encodes.
func ErrorEvent(code, message string) Event {
	evt, _ := NewEvent(EventError, ErrorPayload{Code: code, Message: message})
	return evt
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
