package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	RoomID    uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_room_seq,priority:1"`
	UserID    uuid.UUID `gorm:"type:varchar(36);not null;index"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_messages_room_seq,priority:2"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
	Room Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
