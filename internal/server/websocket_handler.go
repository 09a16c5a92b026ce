package server

import (
	"net/http"
	"strings"

	"advisor-chat/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades authenticated requests into hub sessions.
type WebSocketHandler struct {
	hub    *Hub
	parser *auth.TokenParser
	logger *WebSocketLogger
}

func NewWebSocketHandler(hub *Hub, parser *auth.TokenParser) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		parser: parser,
		logger: NewWebSocketLogger(),
	}
}

// Handle upgrades HTTP to WebSocket. The token comes from the query string or
// the Authorization header; browsers cannot set headers on WebSocket upgrades,
// hence the query fallback.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.parser.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	userID, _, _, err := claims.Identity()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", userID, "", err)
		return
	}

	client := NewClient(h.hub, conn, userID, uuid.New().String(), h.logger)
	h.hub.register <- client
}

func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
