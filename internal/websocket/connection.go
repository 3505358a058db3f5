package websocket

import (
	"time"

	"github.com/google/uuid"
)

// Connection is the identity of one authenticated realtime connection. It is
// fixed at handshake and never changes for the life of the connection.
type Connection struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Username    string
	RemoteAddr  string
	ConnectedAt time.Time
}

func NewConnection(userID uuid.UUID, username, remoteAddr string) Connection {
	return Connection{
		ID:          uuid.New(),
		UserID:      userID,
		Username:    username,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}
