package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/handlers/dto"
	"github.com/thereayou/concord/internal/models"
	ws "github.com/thereayou/concord/internal/websocket"
)

type Publisher interface {
	Publish(roomID uuid.UUID, seq int64, payload []byte)
}

// RoomBroadcaster turns persisted messages into receive_message events for
// the room's subscribers.
type RoomBroadcaster struct {
	hub Publisher
}

func NewRoomBroadcaster(hub Publisher) *RoomBroadcaster {
	return &RoomBroadcaster{hub: hub}
}

func (b *RoomBroadcaster) BroadcastMessage(_ context.Context, msg *models.Message) error {
	evt, err := ws.NewEvent(ws.EventReceiveMessage, dto.ReceiveMessagePayload{Message: dto.NewMessageResponse(msg)})
	if err != nil {
		return fmt.Errorf("build receive_message: %w", err)
	}
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode receive_message: %w", err)
	}

	b.hub.Publish(msg.RoomID, msg.Seq, payload)
	return nil
}
