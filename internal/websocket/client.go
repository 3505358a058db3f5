package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thereayou/concord/pkg/log"
	"golang.org/x/time/rate"
)

// Settings bound the resources one connection may use.
type Settings struct {
	SendBuffer      int
	MaxFrameSize    int64
	PongWait        time.Duration
	WriteWait       time.Duration
	EventsPerSecond float64
	EventBurst      int
}

func DefaultSettings() Settings {
	return Settings{
		SendBuffer:      256,
		MaxFrameSize:    64 * 1024,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		EventsPerSecond: 10,
		EventBurst:      20,
	}
}

func (s Settings) pingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// EventHandler turns one inbound event into the events sent back to the
// connection that produced it.
type EventHandler interface {
	HandleEvent(ctx context.Context, conn Connection, evt Event) []Event
}

// Client is one live websocket connection: its identity, socket and send
// queue. The queue is closed by the hub when the connection is unregistered.
type Client struct {
	Connection

	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	limiter  *rate.Limiter
	settings Settings
}

// NewClient binds an authenticated identity to an upgraded socket. conn may
// be nil for clients that are only registered, never pumped.
func NewClient(hub *Hub, conn *websocket.Conn, identity Connection, settings Settings) *Client {
	return &Client{
		Connection: identity,
		conn:       conn,
		hub:        hub,
		send:       make(chan []byte, settings.SendBuffer),
		limiter:    rate.NewLimiter(rate.Limit(settings.EventsPerSecond), settings.EventBurst),
		settings:   settings,
	}
}

// Outbound exposes the send queue.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// ReadPump handles inbound events one at a time until the socket fails, then
// unregisters the client.
func (c *Client) ReadPump(ctx context.Context, handler EventHandler) {
	logger := log.Ctx(ctx)
	defer func() {
		c.hub.Unregister(c.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			c.reply(ErrorEvent(CodeRateLimited, "too many events, slow down"))
			continue
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil || evt.Type == "" {
			c.reply(ErrorEvent(CodeBadRequest, ErrInvalidEvent.Error()))
			continue
		}

		for _, out := range handler.HandleEvent(ctx, c.Connection, evt) {
			c.reply(out)
		}
	}
}

func (c *Client) reply(evt Event) {
	payload, err := evt.Encode()
	if err != nil {
		lg := log.L()
		lg.Error().Err(err).Str(log.FieldEvent, string(evt.Type)).Msg("encode event")
		return
	}
	c.hub.SendTo(c.ID, payload)
}

// WritePump writes queued frames and keepalive pings. Each queued payload is
// written as its own frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
