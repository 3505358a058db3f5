package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/pkg/log"
)

// Broadcaster fans a persisted message out to the room's live subscribers.
type Broadcaster interface {
	BroadcastMessage(ctx context.Context, msg *models.Message) error
}

type MessageService struct {
	store             MessageStore
	users             UserStore
	broadcaster       Broadcaster
	maxLength         int
	requireMembership bool
}

func NewMessageService(store MessageStore, users UserStore, broadcaster Broadcaster, maxLength int, requireMembership bool) *MessageService {
	return &MessageService{
		store:             store,
		users:             users,
		broadcaster:       broadcaster,
		maxLength:         maxLength,
		requireMembership: requireMembership,
	}
}

// SendMessage validates the content, persists it as senderID's message in
// roomID and, only once the write has committed, broadcasts it to the room.
// A failed write broadcasts nothing.
func (s *MessageService) SendMessage(ctx context.Context, senderID, roomID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, validationError("message content is required")
	}
	if n := utf8.RuneCountInString(content); n > s.maxLength {
		return nil, validationError("message content exceeds %d characters", s.maxLength)
	}

	msg := &models.Message{
		RoomID:  roomID,
		UserID:  senderID,
		Content: content,
	}
	if err := s.store.AppendMessage(ctx, msg, s.requireMembership); err != nil {
		return nil, storeError("append message", err)
	}

	logger := log.Ctx(ctx).With().
		Str(log.FieldRoomID, roomID.String()).
		Str(log.FieldUserID, senderID.String()).
		Int64("seq", msg.Seq).
		Logger()

	if err := s.broadcaster.BroadcastMessage(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("broadcast failed")
	}

	if err := s.users.UpdateLastSeen(ctx, senderID); err != nil {
		logger.Warn().Err(err).Msg("update last seen failed")
	}

	logger.Debug().Msg("message sent")
	return msg, nil
}
