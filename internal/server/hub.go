package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"advisor-chat/internal/events"
	"advisor-chat/internal/redis"
	"advisor-chat/internal/services"

	"github.com/google/uuid"
)

const maxSessionsPerUser = 10

// Hub owns every live WebSocket session. Its lifetime is the process lifetime,
// independent of any request. It is the live-push half of fan-out: services
// hand it events through the LivePusher interface and it delivers them to
// whatever sessions the target user has open.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	push       chan *pushRequest

	conversationService *services.ConversationService
	messageService      *services.MessageService
	presence            *redis.PresenceStore
	rateLimiter         *ConnectionRateLimiter
	logger              *WebSocketLogger

	mu        sync.RWMutex
	stopChan  chan struct{}
	isRunning int32
}

type pushRequest struct {
	userID  uuid.UUID
	payload []byte
}

// ConnectionRateLimiter caps new connections per user per minute.
type ConnectionRateLimiter struct {
	connectionsPerUser map[uuid.UUID][]time.Time
	limit              int
	mu                 sync.Mutex
}

func NewConnectionRateLimiter(limit int) *ConnectionRateLimiter {
	rl := &ConnectionRateLimiter{
		connectionsPerUser: make(map[uuid.UUID][]time.Time),
		limit:              limit,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *ConnectionRateLimiter) AllowConnection(userID uuid.UUID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := time.Now().Add(-1 * time.Minute)
	valid := rl.connectionsPerUser[userID][:0]
	for _, t := range rl.connectionsPerUser[userID] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.connectionsPerUser[userID] = valid
		return false
	}

	rl.connectionsPerUser[userID] = append(valid, time.Now())
	return true
}

func (rl *ConnectionRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for userID, times := range rl.connectionsPerUser {
			valid := times[:0]
			for _, t := range times {
				if t.After(cutoff) {
					valid = append(valid, t)
				}
			}
			if len(valid) == 0 {
				delete(rl.connectionsPerUser, userID)
			} else {
				rl.connectionsPerUser[userID] = valid
			}
		}
		rl.mu.Unlock()
	}
}

func NewHub(presence *redis.PresenceStore) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[string]*Client),
		register:    make(chan *Client, 256),
		unregister:  make(chan *Client, 256),
		push:        make(chan *pushRequest, 1024),
		presence:    presence,
		rateLimiter: NewConnectionRateLimiter(maxSessionsPerUser),
		logger:      NewWebSocketLogger(),
		stopChan:    make(chan struct{}),
	}
}

// BindServices attaches the services the hub invokes for inbound client
// frames. Separate from the constructor because the services themselves push
// through the hub.
func (h *Hub) BindServices(conversations *services.ConversationService, messages *services.MessageService) {
	h.conversationService = conversations
	h.messageService = messages
}

// Run processes register/unregister/push until Stop.
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case req := <-h.push:
			h.deliver(req.userID, req.payload)

		case <-h.stopChan:
			return
		}
	}
}

// PushToUser queues an event for every open session of the user. Implements
// services.LivePusher; drops silently when the hub queue is full.
func (h *Hub) PushToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.push <- &pushRequest{userID: userID, payload: data}:
	default:
		h.logger.Warn("hub push queue full", userID, "")
	}
}

// IsOnline consults the local session table first, then the shared presence
// store so sessions on other instances count.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	local := len(h.clients[userID]) > 0
	h.mu.RUnlock()
	if local {
		return true
	}

	if h.presence == nil {
		return false
	}
	online, err := h.presence.IsOnline(context.Background(), userID.String())
	if err != nil {
		return false
	}
	return online
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.rateLimiter.AllowConnection(client.userID) {
		h.logger.Warn("connection rate limit exceeded", client.userID, client.sessionID)
		client.conn.Close()
		return
	}

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[string]*Client)
	}

	// Evict the oldest session when a user exceeds the cap.
	if len(h.clients[client.userID]) >= maxSessionsPerUser {
		h.logger.Warn("max sessions per user reached", client.userID, client.sessionID)
		for id, c := range h.clients[client.userID] {
			h.closeClient(c)
			delete(h.clients[client.userID], id)
			break
		}
	}

	h.clients[client.userID][client.sessionID] = client

	if h.presence != nil {
		if err := h.presence.SetOnline(context.Background(), client.userID.String()); err != nil {
			h.logger.Warn("presence set online failed", client.userID, client.sessionID)
		}
	}

	h.logger.Info("client connected", client.userID, client.sessionID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := userClients[client.sessionID]; !ok {
		return
	}

	delete(userClients, client.sessionID)
	h.closeClient(client)

	if len(userClients) == 0 {
		delete(h.clients, client.userID)
		if h.presence != nil {
			if err := h.presence.SetOffline(context.Background(), client.userID.String()); err != nil {
				h.logger.Warn("presence set offline failed", client.userID, client.sessionID)
			}
		}
	}

	h.logger.Info("client disconnected", client.userID, client.sessionID)
}

func (h *Hub) closeClient(client *Client) {
	close(client.send)
	client.conn.Close()
}

func (h *Hub) deliver(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("client send buffer full", client.userID, client.sessionID)
		}
	}
}

// Stop shuts the hub down and closes every session.
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for _, client := range userClients {
			h.closeClient(client)
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
}
