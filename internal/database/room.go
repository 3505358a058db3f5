package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom inserts the room and the creator's membership in one
// transaction. Either both rows exist afterwards or neither does.
func (d *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, room.CreatedBy); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return translate(err)
		}

		member := &models.RoomMember{RoomID: room.ID, UserID: room.CreatedBy, JoinedAt: room.CreatedAt}
		if member.JoinedAt.IsZero() {
			member.JoinedAt = time.Now()
		}
		return translate(tx.Omit(clause.Associations).Create(member).Error)
	})
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// ListRooms returns every room, newest first.
func (d *Database) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id").
		Find(&rooms).Error
	if err != nil {
		return nil, translate(err)
	}
	return rooms, nil
}

// ListUserRooms returns the rooms the user is a durable member of.
func (d *Database) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, translate(err)
	}
	return rooms, nil
}

// AddMember records a membership. It reports whether a new row was created;
// an existing membership, including one inserted concurrently, is not an
// error.
func (d *Database) AddMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	db := d.db.WithContext(ctx)

	if err := requireRoom(db, roomID); err != nil {
		return false, err
	}
	if err := requireUser(db, userID); err != nil {
		return false, err
	}

	isMember, err := memberExists(db, roomID, userID)
	if err != nil {
		return false, err
	}
	if isMember {
		return false, nil
	}

	member := &models.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	err = translate(db.Omit(clause.Associations).Create(member).Error)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		// Some drivers report a lost insert race as a generic constraint
		// failure; the row being there settles it.
		if exists, checkErr := memberExists(db, roomID, userID); checkErr == nil && exists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Database) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return memberExists(d.db.WithContext(ctx), roomID, userID)
}

// ListMembers returns the room's memberships with their users, oldest first.
func (d *Database) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	db := d.db.WithContext(ctx)
	if err := requireRoom(db, roomID); err != nil {
		return nil, err
	}

	var members []models.RoomMember
	err := db.
		Preload("User").
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}

func memberExists(db *gorm.DB, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func requireRoom(db *gorm.DB, roomID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func requireUser(db *gorm.DB, userID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
