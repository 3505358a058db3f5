package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendMessage persists msg in one transaction and assigns its per-room
// sequence number. The room row is locked by the counter update, so sequence
// order equals commit order within a room. On success msg.Seq, msg.ID,
// msg.CreatedAt and msg.User are populated.
func (d *Database) AppendMessage(ctx context.Context, msg *models.Message, requireMembership bool) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Room{}).
			Where("id = ?", msg.RoomID).
			UpdateColumn("last_seq", gorm.Expr("last_seq + ?", 1))
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var sender models.User
		if err := tx.First(&sender, "id = ?", msg.UserID).Error; err != nil {
			return translate(err)
		}

		if requireMembership {
			ok, err := memberExists(tx, msg.RoomID, msg.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotMember
			}
		}

		var room models.Room
		if err := tx.Select("last_seq").First(&room, "id = ?", msg.RoomID).Error; err != nil {
			return translate(err)
		}
		msg.Seq = room.LastSeq

		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return translate(err)
		}
		msg.User = sender
		return nil
	})
}

// HistoryOptions pages through a room's history. A zero Limit returns
// everything; BeforeSeq restricts the page to older messages.
type HistoryOptions struct {
	Limit     int
	BeforeSeq int64
}

// GetRoomMessages returns the room's messages in chronological order with
// their senders loaded.
func (d *Database) GetRoomMessages(ctx context.Context, roomID uuid.UUID, opts HistoryOptions) ([]models.Message, error) {
	db := d.db.WithContext(ctx)
	if err := requireRoom(db, roomID); err != nil {
		return nil, err
	}

	query := db.Preload("User").Where("room_id = ?", roomID)
	if opts.BeforeSeq > 0 {
		query = query.Where("seq < ?", opts.BeforeSeq)
	}

	var messages []models.Message
	if opts.Limit <= 0 {
		if err := query.Order("seq ASC").Find(&messages).Error; err != nil {
			return nil, translate(err)
		}
		return messages, nil
	}

	// Take the newest page, then flip it so the oldest comes first.
	if err := query.Order("seq DESC").Limit(opts.Limit).Find(&messages).Error; err != nil {
		return nil, translate(err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
