package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/internal/services"
)

type CreateRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

type RoomResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinRoomResponse struct {
	RoomID uuid.UUID `json:"room_id"`
	Joined bool      `json:"joined"`
}

type MemberResponse struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	IsOnline   bool       `json:"is_online"`
	IsOwner    bool       `json:"is_owner"`
}

func NewRoomResponse(r *models.Room) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

func NewRoomResponses(rooms []models.Room) []RoomResponse {
	out := make([]RoomResponse, len(rooms))
	for i := range rooms {
		out[i] = NewRoomResponse(&rooms[i])
	}
	return out
}

func NewMemberResponses(members []services.Member) []MemberResponse {
	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = MemberResponse{
			ID:         m.User.ID,
			Username:   m.User.Username,
			JoinedAt:   m.JoinedAt,
			LastSeenAt: m.User.LastSeenAt,
			IsOnline:   m.Online,
			IsOwner:    m.IsOwner,
		}
	}
	return out
}
