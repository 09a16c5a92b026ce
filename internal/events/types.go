package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the envelope pushed to live participant sessions.
type Event struct {
	Type           string      `json:"type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	ActorID        uuid.UUID   `json:"actor_id"`
	Payload        interface{} `json:"payload,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

func New(eventType string, conversationID, actorID uuid.UUID, payload interface{}) Event {
	return Event{
		Type:           eventType,
		ConversationID: conversationID,
		ActorID:        actorID,
		Payload:        payload,
		Timestamp:      time.Now(),
	}
}

// Message events
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageUpdated = "message.updated"
	EventTypeMessageDeleted = "message.deleted"
)

// Receipt events
const (
	EventTypeReceiptRead = "receipt.read"
)

// Typing events (real-time only, never persisted)
const (
	EventTypeTypingStarted = "typing.started"
	EventTypeTypingStopped = "typing.stopped"
)

// Conversation events
const (
	EventTypeConversationCreated    = "conversation.created"
	EventTypeConversationUpdated    = "conversation.updated"
	EventTypeConversationArchived   = "conversation.archived"
	EventTypeConversationUnarchived = "conversation.unarchived"
)

// Participant events
const (
	EventTypeParticipantAdded   = "participant.added"
	EventTypeParticipantRemoved = "participant.removed"
	EventTypeParticipantLeft    = "participant.left"
)
