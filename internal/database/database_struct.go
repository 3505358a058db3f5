package database

import "gorm.io/gorm"

// Database is the room store. It owns every durable entity and the
// transactional guarantees around them.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) DB() *gorm.DB {
	return d.db
}
