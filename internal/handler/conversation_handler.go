package handler

import (
	"net/http"
	"strconv"

	"advisor-chat/internal/domain/conversation"
	"advisor-chat/internal/repository"
	"advisor-chat/internal/services"
	"advisor-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversationHandler handles conversation HTTP endpoints.
type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Create handles POST /api/conversations.
func (h *ConversationHandler) Create(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	participantIDs, err := parseUUIDs(req.ParticipantIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.Create(c.Request.Context(), identity.UserID, services.CreateConversationInput{
		Type:           conversation.Type(req.Type),
		Purpose:        conversation.Purpose(req.Purpose),
		ParticipantIDs: participantIDs,
		Name:           req.Name,
		Settings:       req.Settings,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

// Get handles GET /api/conversations/:id.
func (h *ConversationHandler) Get(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	conv, err := h.service.GetForUser(c.Request.Context(), conversationID, identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	filter := repository.ConversationFilter{
		Type:    conversation.Type(c.Query("type")),
		Purpose: conversation.Purpose(c.Query("purpose")),
		Page:    queryInt(c, "page", 1),
		Limit:   queryInt(c, "limit", 20),
	}
	if v := c.Query("archived"); v != "" {
		archived := v == "true"
		filter.Archived = &archived
	}

	convs, total, err := h.service.ListForUser(c.Request.Context(), identity.UserID, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PagedResponse[conversation.Conversation]{
		Items: convs,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}))
}

// Update handles PUT /api/conversations/:id.
func (h *ConversationHandler) Update(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req httpdto.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.Update(c.Request.Context(), conversationID, identity.UserID, services.UpdateConversationInput{
		Name:     req.Name,
		Settings: req.Settings,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// AddParticipants handles POST /api/conversations/:id/participants.
func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req httpdto.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userIDs, err := parseUUIDs(req.UserIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.AddParticipants(c.Request.Context(), conversationID, identity.UserID, userIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

// RemoveParticipant handles DELETE /api/conversations/:id/participants/:userId.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.RemoveParticipant(c.Request.Context(), conversationID, identity.UserID, targetID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": true}))
}

// Archive handles POST /api/conversations/:id/archive.
func (h *ConversationHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive handles POST /api/conversations/:id/unarchive.
func (h *ConversationHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ConversationHandler) setArchived(c *gin.Context, archived bool) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	if err := h.service.SetArchived(c.Request.Context(), conversationID, identity.UserID, archived); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"archived": archived}))
}

// Typing handles POST /api/conversations/:id/typing.
func (h *ConversationHandler) Typing(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req httpdto.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.service.Typing(c.Request.Context(), conversationID, identity.UserID, req.Started); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"ok": true}))
}

// MarkRead handles POST /api/conversations/:id/read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), conversationID, identity.UserID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"read": true}))
}

// Mute handles POST /api/conversations/:id/mute.
func (h *ConversationHandler) Mute(c *gin.Context) {
	h.setParticipantFlag(c, func(identity services.Identity, conversationID uuid.UUID) error {
		return h.service.SetMuted(c.Request.Context(), conversationID, identity.UserID, true)
	})
}

// Unmute handles POST /api/conversations/:id/unmute.
func (h *ConversationHandler) Unmute(c *gin.Context) {
	h.setParticipantFlag(c, func(identity services.Identity, conversationID uuid.UUID) error {
		return h.service.SetMuted(c.Request.Context(), conversationID, identity.UserID, false)
	})
}

// Pin handles POST /api/conversations/:id/pin.
func (h *ConversationHandler) Pin(c *gin.Context) {
	h.setParticipantFlag(c, func(identity services.Identity, conversationID uuid.UUID) error {
		return h.service.SetPinned(c.Request.Context(), conversationID, identity.UserID, true)
	})
}

// Unpin handles POST /api/conversations/:id/unpin.
func (h *ConversationHandler) Unpin(c *gin.Context) {
	h.setParticipantFlag(c, func(identity services.Identity, conversationID uuid.UUID) error {
		return h.service.SetPinned(c.Request.Context(), conversationID, identity.UserID, false)
	})
}

func (h *ConversationHandler) setParticipantFlag(c *gin.Context, fn func(services.Identity, uuid.UUID) error) {
	identity, conversationID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	if err := fn(identity, conversationID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"ok": true}))
}

func (h *ConversationHandler) identityAndID(c *gin.Context) (services.Identity, uuid.UUID, bool) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return services.Identity{}, uuid.Nil, false
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return services.Identity{}, uuid.Nil, false
	}
	return identity, conversationID, true
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
