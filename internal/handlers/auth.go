package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/concord/internal/handlers/dto"
	"github.com/thereayou/concord/internal/middleware"
	"github.com/thereayou/concord/internal/services"
	"github.com/thereayou/concord/pkg/response"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, newAuthResponse(res))
}

// Login issues a token and refreshes last_seen_at.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, newAuthResponse(res))
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"user": dto.NewUserResponse(user)})
}

// Logout blacklists the presented token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "logged out"})
}

func newAuthResponse(res *services.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		User:           dto.NewUserResponse(res.User),
		Token:          res.Token,
		TokenExpiresAt: res.ExpiresAt,
	}
}
