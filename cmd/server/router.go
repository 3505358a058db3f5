package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/concord/internal/handlers"
	"github.com/thereayou/concord/internal/middleware"
	ws "github.com/thereayou/concord/internal/websocket"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Rooms     *handlers.RoomHandler
	WebSocket *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h *Handlers, authenticator middleware.Authenticator, limiter middleware.Limiter, hub *ws.Hub) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.Count()})
	})

	requireAuth := middleware.AuthMiddleware(authenticator)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter))

	// Auth endpoints
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", requireAuth, h.Auth.Me)
		authGroup.POST("/logout", requireAuth, h.Auth.Logout)
	}

	rooms := api.Group("/rooms", requireAuth)
	{
		rooms.POST("", h.Rooms.CreateRoom)
		rooms.GET("", h.Rooms.ListRooms)
		rooms.GET("/:id", h.Rooms.GetRoom)
		rooms.POST("/:id/join", h.Rooms.JoinRoom)
		rooms.GET("/:id/members", h.Rooms.GetRoomMembers)
		rooms.GET("/:id/messages", h.Rooms.GetRoomMessages)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(authenticator), h.WebSocket.HandleWebSocket)
}
