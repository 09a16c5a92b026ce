// Package notify hands offline-notification envelopes to the external
// notification service. Delivery itself (in-app persistence, email, SMS) is
// that service's problem; this side only publishes.
package notify

import (
	"context"

	"github.com/google/uuid"
)

const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Envelope is one notification for one recipient on one channel.
type Envelope struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	Channel        string      `json:"channel"`
	EventType      string      `json:"event_type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Payload        interface{} `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
	Close() error
}
