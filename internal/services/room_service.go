package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/pkg/log"
)

const maxRoomNameLength = 100

// Presence reports which users currently hold a live connection.
type Presence interface {
	IsOnline(userID uuid.UUID) bool
}

// Member is a durable membership enriched with live presence.
type Member struct {
	User     models.User
	JoinedAt time.Time
	Online   bool
	IsOwner  bool
}

type RoomService struct {
	rooms             RoomStore
	messages          MessageStore
	presence          Presence
	requireMembership bool
}

func NewRoomService(rooms RoomStore, messages MessageStore, presence Presence, requireMembership bool) *RoomService {
	return &RoomService{
		rooms:             rooms,
		messages:          messages,
		presence:          presence,
		requireMembership: requireMembership,
	}
}

// CreateRoom creates a room owned by ownerID. The owner is a member as soon
// as the room exists.
func (s *RoomService) CreateRoom(ctx context.Context, name string, ownerID uuid.UUID) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("room name is required")
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, validationError("room name must be at most %d characters", maxRoomNameLength)
	}

	room := &models.Room{Name: name, CreatedBy: ownerID}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, storeError("create room", err)
	}

	log.Ctx(ctx).Info().
		Str(log.FieldRoomID, room.ID.String()).
		Str(log.FieldUserID, ownerID.String()).
		Msg("room created")
	return room, nil
}

// JoinRoom makes userID a durable member. Joining twice is not an error; the
// result reports whether a membership was created.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	created, err := s.rooms.AddMember(ctx, roomID, userID)
	if err != nil {
		return false, storeError("join room", err)
	}
	return created, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError("get room", err)
	}
	return room, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, storeError("list rooms", err)
	}
	return rooms, nil
}

func (s *RoomService) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rooms, err := s.rooms.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, storeError("list user rooms", err)
	}
	return rooms, nil
}

func (s *RoomService) ListMembers(ctx context.Context, roomID uuid.UUID) ([]Member, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError("get room", err)
	}

	rows, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storeError("list members", err)
	}

	members := make([]Member, len(rows))
	for i, row := range rows {
		members[i] = Member{
			User:     row.User,
			JoinedAt: row.JoinedAt,
			Online:   s.presence != nil && s.presence.IsOnline(row.UserID),
			IsOwner:  row.UserID == room.CreatedBy,
		}
	}
	return members, nil
}

// GetRoomMessages returns the room history in chronological order.
func (s *RoomService) GetRoomMessages(ctx context.Context, roomID uuid.UUID, opts database.HistoryOptions) ([]models.Message, error) {
	messages, err := s.messages.GetRoomMessages(ctx, roomID, opts)
	if err != nil {
		return nil, storeError("get room messages", err)
	}
	return messages, nil
}

// AuthorizeSubscription decides whether userID may receive live messages of
// roomID and returns the room as read. The room must exist; membership is
// required only when the membership policy is on.
func (s *RoomService) AuthorizeSubscription(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError("get room", err)
	}
	if !s.requireMembership {
		return room, nil
	}

	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, storeError("check membership", err)
	}
	if !ok {
		return nil, storeError("subscribe", database.ErrNotMember)
	}
	return room, nil
}
