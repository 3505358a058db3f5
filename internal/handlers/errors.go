package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/concord/internal/services"
	ws "github.com/thereayou/concord/internal/websocket"
	"github.com/thereayou/concord/pkg/log"
	"github.com/thereayou/concord/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Client-facing messages are fixed per class; details stay in the logs.
var errorMappings = []errorMapping{
	{services.ErrUnauthorized, http.StatusUnauthorized, ws.CodeUnauthorized, "authentication required"},
	{services.ErrNotFound, http.StatusNotFound, ws.CodeNotFound, "not found"},
	{services.ErrValidation, http.StatusBadRequest, ws.CodeBadRequest, ""},
	{services.ErrForbidden, http.StatusForbidden, ws.CodeForbidden, "not a member of this room"},
	{services.ErrConflict, http.StatusConflict, "CONFLICT", "already exists"},
}

func classify(err error) (status int, code, message string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, ws.CodeInternal, "internal server error"
}

// writeError replies to a REST request with the envelope matching err.
func writeError(c *gin.Context, err error) {
	status, code, message := classify(err)
	logError(c.Request.Context(), status, err)
	response.Error(c, status, code, message)
}

// errorEvent converts a failure into the error event sent to the originating
// connection only.
func errorEvent(ctx context.Context, err error) ws.Event {
	status, code, message := classify(err)
	logError(ctx, status, err)
	return ws.ErrorEvent(code, message)
}

func logError(ctx context.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Msg("request failed")
		return
	}
	log.Ctx(ctx).Debug().Err(err).Msg("request rejected")
}
