package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/models"
)

// MessageResponse is a persisted message as clients see it, over REST and
// in receive_message events.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Seq       int64     `json:"seq"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type ReceiveMessagePayload struct {
	Message MessageResponse `json:"message"`
}

func NewMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Seq:       m.Seq,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		User: UserInfo{
			ID:       m.User.ID,
			Username: m.User.Username,
		},
	}
}

func NewMessageResponses(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i := range messages {
		out[i] = NewMessageResponse(&messages[i])
	}
	return out
}
