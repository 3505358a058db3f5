package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/models"
)

type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
	AddMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.Message, requireMembership bool) error
	GetRoomMessages(ctx context.Context, roomID uuid.UUID, opts database.HistoryOptions) ([]models.Message, error)
}

var (
	_ UserStore    = (*database.Database)(nil)
	_ RoomStore    = (*database.Database)(nil)
	_ MessageStore = (*database.Database)(nil)
)
