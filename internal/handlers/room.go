package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/concord/internal/database"
	"github.com/thereayou/concord/internal/handlers/dto"
	"github.com/thereayou/concord/internal/middleware"
	"github.com/thereayou/concord/internal/models"
	"github.com/thereayou/concord/internal/services"
	"github.com/thereayou/concord/pkg/response"
)

const maxHistoryPage = 100

type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req.Name, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, dto.NewRoomResponse(room))
}

// ListRooms returns every room, newest first. With ?mine=true only the
// caller's rooms are listed.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		rooms []models.Room
		err   error
	)
	if c.Query("mine") == "true" {
		rooms, err = h.rooms.ListUserRooms(ctx, middleware.CurrentUserID(c))
	} else {
		rooms, err = h.rooms.ListRooms(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto.NewRoomResponses(rooms))
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto.NewRoomResponse(room))
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	joined, err := h.rooms.JoinRoom(c.Request.Context(), roomID, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto.JoinRoomResponse{RoomID: roomID, Joined: joined})
}

// GetRoomMembers lists durable members with their live presence.
func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	members, err := h.rooms.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto.NewMemberResponses(members))
}

// GetRoomMessages returns the history oldest first. ?limit takes the newest
// page; ?before=<seq> pages further back.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var opts database.HistoryOptions
	if l := c.Query("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 || limit > maxHistoryPage {
			response.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		opts.Limit = limit
	}
	if b := c.Query("before"); b != "" {
		before, err := strconv.ParseInt(b, 10, 64)
		if err != nil || before <= 0 {
			response.BadRequest(c, "before must be a positive sequence number")
			return
		}
		opts.BeforeSeq = before
	}

	messages, err := h.rooms.GetRoomMessages(c.Request.Context(), roomID, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto.NewMessageResponses(messages))
}

func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "room not found")
		return uuid.Nil, false
	}
	return roomID, true
}
