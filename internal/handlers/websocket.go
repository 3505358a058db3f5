package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/concord/internal/middleware"
	ws "github.com/thereayou/concord/internal/websocket"
	"github.com/thereayou/concord/pkg/auth"
	"github.com/thereayou/concord/pkg/log"
	"github.com/thereayou/concord/pkg/response"
)

// WebSocketHandler upgrades authenticated handshakes into hub clients.
type WebSocketHandler struct {
	hub      *ws.Hub
	events   ws.EventHandler
	upgrader websocket.Upgrader
	settings ws.Settings
}

func NewWebSocketHandler(hub *ws.Hub, events ws.EventHandler, origins *ws.OriginPolicy, settings ws.Settings) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: settings.WriteWait,
			CheckOrigin:      origins.Check,
		},
		settings: settings,
	}
}

// HandleWebSocket must run behind middleware.WSAuthMiddleware.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	value, exists := c.Get(middleware.PrincipalKey)
	principal, ok := value.(*auth.Principal)
	if !exists || !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	identity := ws.NewConnection(principal.UserID, principal.Username, c.ClientIP())
	client := ws.NewClient(h.hub, conn, identity, h.settings)

	if err := h.hub.Serve(client, h.events); err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
	}
}
