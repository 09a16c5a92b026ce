package repository

import (
	"context"
	"time"

	"advisor-chat/internal/domain/conversation"
	"advisor-chat/internal/domain/message"

	"github.com/google/uuid"
)

// ConversationFilter narrows a user's conversation listing.
type ConversationFilter struct {
	Type     conversation.Type
	Purpose  conversation.Purpose
	Archived *bool
	Page     int
	Limit    int
}

// SearchFilter scopes a full-text message search. ConversationIDs is the
// requester's accessible set, resolved by the caller before the query runs.
type SearchFilter struct {
	ConversationIDs []uuid.UUID
	Query           string
	Type            message.Type
	SenderID        *uuid.UUID
	From            *time.Time
	To              *time.Time
	Page            int
	Limit           int
}

type ConversationRepository interface {
	// Create persists the conversation and its participant rows in one
	// transaction.
	Create(ctx context.Context, c *conversation.Conversation, participants []*conversation.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, f ConversationFilter) ([]conversation.Conversation, int64, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	// FindDirectBetween locates an existing two-party conversation for the
	// given purpose, regardless of participant order.
	FindDirectBetween(ctx context.Context, purpose conversation.Purpose, userA, userB uuid.UUID) (conversation.Conversation, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	ReactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, addedBy *uuid.UUID) error
	SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error
	SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error
	UpdateLastSeen(ctx context.Context, conversationID, userID uuid.UUID) error
	AccessibleConversationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository interface {
	// Create runs the whole send unit in one transaction: message insert,
	// conversation last-message bump, and an atomic unread increment for every
	// other active participant.
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error)
	// EditContent applies the edit only when the guard row still matches:
	// same sender, not deleted, created within the window. The window is
	// evaluated against the stored created_at at update time, never a cached
	// read.
	EditContent(ctx context.Context, id, senderID uuid.UUID, content string, window time.Duration) (message.Message, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (message.Message, error)
	// MarkRead sets read_at (first reader wins), advances the reader's
	// last_read_at and zeroes their unread counter in one transaction.
	MarkRead(ctx context.Context, messageID, userID uuid.UUID) (message.Message, error)
	BulkMarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) ([]message.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) error
	Search(ctx context.Context, f SearchFilter) ([]message.Message, int64, error)
}
