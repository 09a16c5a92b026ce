package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Per-minute budgets for inbound client frames.
type FrameLimits struct {
	MaxTypingEvents int
	MaxReadReceipts int
	MaxPingMessages int
}

var DefaultFrameLimits = FrameLimits{
	MaxTypingEvents: 60,
	MaxReadReceipts: 120,
	MaxPingMessages: 60,
}

// ClientRateLimiter throttles inbound frames per session.
type ClientRateLimiter struct {
	typingTokens int
	readTokens   int
	pingTokens   int
	lastRefill   time.Time
	mu           sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		typingTokens: DefaultFrameLimits.MaxTypingEvents,
		readTokens:   DefaultFrameLimits.MaxReadReceipts,
		pingTokens:   DefaultFrameLimits.MaxPingMessages,
		lastRefill:   time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(frameType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastRefill) >= time.Minute {
		rl.typingTokens = DefaultFrameLimits.MaxTypingEvents
		rl.readTokens = DefaultFrameLimits.MaxReadReceipts
		rl.pingTokens = DefaultFrameLimits.MaxPingMessages
		rl.lastRefill = time.Now()
	}

	switch frameType {
	case "typing:start", "typing:stop":
		if rl.typingTokens > 0 {
			rl.typingTokens--
			return true
		}
	case "read":
		if rl.readTokens > 0 {
			rl.readTokens--
			return true
		}
	case "ping":
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

// Client is one WebSocket session for one user.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	userID       uuid.UUID
	sessionID    string
	rateLimiter  *ClientRateLimiter
	connectedAt  time.Time
	lastActivity time.Time
	logger       *WebSocketLogger
}

// ClientFrame is an inbound frame from the browser.
type ClientFrame struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, sessionID string, logger *WebSocketLogger) *Client {
	now := time.Now()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		sessionID:    sessionID,
		rateLimiter:  NewClientRateLimiter(),
		connectedAt:  now,
		lastActivity: now,
		logger:       logger,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		c.heartbeat()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.sessionID, err)
			}
			break
		}

		frame = bytes.TrimSpace(bytes.Replace(frame, newline, space, -1))
		c.lastActivity = time.Now()

		if err := c.handleFrame(frame); err != nil {
			c.logger.Error("websocket frame failed", c.userID, c.sessionID, err)
		}
	}
}

func (c *Client) handleFrame(frame []byte) error {
	var msg ClientFrame
	if err := json.Unmarshal(frame, &msg); err != nil {
		return err
	}

	if !c.rateLimiter.Allow(msg.Type) {
		c.logger.Warn("frame rate limit exceeded", c.userID, c.sessionID, zap.String("frame_type", msg.Type))
		return nil
	}

	switch msg.Type {
	case "typing:start":
		return c.typing(msg.ConversationID, true)
	case "typing:stop":
		return c.typing(msg.ConversationID, false)
	case "read":
		return c.readReceipt(msg.MessageID)
	case "ping":
		c.send <- []byte(`{"type":"pong"}`)
		return nil
	default:
		c.logger.Warn("unknown frame type", c.userID, c.sessionID, zap.String("frame_type", msg.Type))
		return nil
	}
}

func (c *Client) typing(conversationID uuid.UUID, started bool) error {
	if c.hub.conversationService == nil {
		return nil
	}
	return c.hub.conversationService.Typing(context.Background(), conversationID, c.userID, started)
}

func (c *Client) readReceipt(messageID uuid.UUID) error {
	if c.hub.messageService == nil {
		return nil
	}
	_, err := c.hub.messageService.MarkRead(context.Background(), messageID, c.userID)
	return err
}

func (c *Client) heartbeat() {
	if c.hub.presence == nil {
		return
	}
	if err := c.hub.presence.Heartbeat(context.Background(), c.userID.String()); err != nil {
		c.logger.Warn("presence heartbeat failed", c.userID, c.sessionID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Flush whatever queued behind this frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(c.lastActivity) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.sessionID)
				return
			}
		}
	}
}
