// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"errors"
	"net/http"

	"advisor-chat/internal/purpose"
	"advisor-chat/internal/transport/httpdto"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto HTTP statuses. Purpose rejections keep
// their reason text; everything else gets a stable code.
func writeError(c *gin.Context, err error) {
	var rej *purpose.Rejection
	if errors.As(err, &rej) {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(rej.Reason, "PURPOSE_REJECTED"))
		return
	}

	switch {
	case errors.Is(err, chat_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, chat_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, chat_errors.ErrNotParticipant):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("not a participant of this conversation", "NOT_PARTICIPANT"))
	case errors.Is(err, chat_errors.ErrEditWindowExpired):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("edit window has expired", "EDIT_WINDOW_EXPIRED"))
	case errors.Is(err, chat_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, chat_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
	case errors.Is(err, chat_errors.ErrMessageDeleted):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("message is deleted", "MESSAGE_DELETED"))
	case errors.Is(err, chat_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("already exists", "ALREADY_EXISTS"))
	case errors.Is(err, chat_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conflict", "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
