package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/concord/pkg/auth"
	"github.com/thereayou/concord/pkg/log"
	"github.com/thereayou/concord/pkg/response"
)

const (
	UserIDKey    = log.FieldUserID
	PrincipalKey = "principal"
	TokenKey     = "token"
)

// Authenticator verifies bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*auth.Principal, error)
}

// AuthMiddleware authenticates REST requests from the Authorization header.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token")
			return
		}
		authenticate(c, authenticator, token)
	}
}

// WSAuthMiddleware authenticates the websocket handshake before the upgrade.
// Browsers cannot set headers on a websocket request, so the token may also
// come from the "token" query parameter.
func WSAuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, authenticator, auth.ExtractToken(c.Request))
	}
}

func authenticate(c *gin.Context, authenticator Authenticator, token string) {
	principal, err := authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		log.Ctx(c.Request.Context()).Debug().Err(err).Msg("authentication failed")
		response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return
	}

	c.Set(UserIDKey, principal.UserID)
	c.Set(PrincipalKey, principal)
	c.Set(TokenKey, token)
	c.Next()
}

// CurrentUserID returns the authenticated user of the request.
func CurrentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(UserIDKey).(uuid.UUID)
}

func CurrentPrincipal(c *gin.Context) *auth.Principal {
	return c.MustGet(PrincipalKey).(*auth.Principal)
}
