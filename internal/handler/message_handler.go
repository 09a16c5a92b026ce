package handler

import (
	"net/http"
	"time"

	"advisor-chat/internal/domain/message"
	"advisor-chat/internal/repository"
	"advisor-chat/internal/services"
	"advisor-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageHandler handles message HTTP endpoints.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send handles POST /api/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	var replyToID *uuid.UUID
	if req.ReplyToID != nil {
		id, err := uuid.Parse(*req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply id", "INVALID_REQUEST"))
			return
		}
		replyToID = &id
	}

	msg, err := h.service.Send(c.Request.Context(), identity.UserID, services.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		Type:           message.Type(req.Type),
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		MimeType:       req.MimeType,
		ReplyToID:      replyToID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

// List handles GET /api/messages?conversation_id=...&before=...&limit=...
func (h *MessageHandler) List(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Query("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	var before *time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid before timestamp", "INVALID_REQUEST"))
			return
		}
		before = &t
	}

	msgs, err := h.service.History(c.Request.Context(), conversationID, identity.UserID, before, queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

// Get handles GET /api/messages/:id.
func (h *MessageHandler) Get(c *gin.Context) {
	identity, messageID, ok := identityAndMessageID(c)
	if !ok {
		return
	}

	msg, err := h.service.Get(c.Request.Context(), messageID, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

// Edit handles PUT /api/messages/:id.
func (h *MessageHandler) Edit(c *gin.Context) {
	identity, messageID, ok := identityAndMessageID(c)
	if !ok {
		return
	}

	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	msg, err := h.service.Edit(c.Request.Context(), messageID, identity.UserID, identity.Role, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

// Delete handles DELETE /api/messages/:id.
func (h *MessageHandler) Delete(c *gin.Context) {
	identity, messageID, ok := identityAndMessageID(c)
	if !ok {
		return
	}

	msg, err := h.service.Delete(c.Request.Context(), messageID, identity.UserID, identity.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

// MarkRead handles PATCH /api/messages/:id/read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	identity, messageID, ok := identityAndMessageID(c)
	if !ok {
		return
	}

	msg, err := h.service.MarkRead(c.Request.Context(), messageID, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

// BulkMarkRead handles PATCH /api/messages/bulk/read.
func (h *MessageHandler) BulkMarkRead(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req httpdto.BulkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	messageIDs, err := parseUUIDs(req.MessageIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	msgs, err := h.service.BulkMarkRead(c.Request.Context(), messageIDs, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msgs))
}

// Search handles GET /api/messages/search.
func (h *MessageHandler) Search(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	filter := repository.SearchFilter{
		Query: c.Query("q"),
		Type:  message.Type(c.Query("type")),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 20),
	}

	if v := c.Query("conversation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
			return
		}
		filter.ConversationIDs = []uuid.UUID{id}
	}
	if v := c.Query("sender_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid sender id", "INVALID_REQUEST"))
			return
		}
		filter.SenderID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid from timestamp", "INVALID_REQUEST"))
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid to timestamp", "INVALID_REQUEST"))
			return
		}
		filter.To = &t
	}

	msgs, total, err := h.service.Search(c.Request.Context(), identity.UserID, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PagedResponse[message.Message]{
		Items: msgs,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}))
}

func requireIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return services.Identity{}, false
	}
	return identity, true
}

func identityAndMessageID(c *gin.Context) (services.Identity, uuid.UUID, bool) {
	identity, ok := requireIdentity(c)
	if !ok {
		return services.Identity{}, uuid.Nil, false
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return services.Identity{}, uuid.Nil, false
	}
	return identity, messageID, true
}
