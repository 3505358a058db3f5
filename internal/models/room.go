package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is immutable after creation except for LastSeq, which the store
// increments on every appended message.
type Room struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Name      string    `gorm:"size:100;not null"`
	CreatedBy uuid.UUID `gorm:"type:varchar(36);not null;index"`
	LastSeq   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index"`

	Creator User `gorm:"foreignKey:CreatedBy"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoomMember is the durable membership of a user in a room.
type RoomMember struct {
	RoomID   uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	UserID   uuid.UUID `gorm:"type:varchar(36);primaryKey;index"`
	JoinedAt time.Time

	Room Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (RoomMember) TableName() string {
	return "room_members"
}
