package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrHubClosed        = errors.New("hub is shut down")
	ErrInvalidEvent     = errors.New("invalid event format")
)
