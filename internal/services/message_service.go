package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	"advisor-chat/internal/domain/message"
	"advisor-chat/internal/events"
	"advisor-chat/internal/repository"
	chat_errors "advisor-chat/pkg/errors"
	"advisor-chat/pkg/logger"

	"github.com/google/uuid"
)

const minSearchQueryLen = 2

type MessageService struct {
	repo          repository.MessageRepository
	conversations repository.ConversationRepository
	fanout        *FanoutService
	log           *logger.Logger

	editWindow    time.Duration
	moderatorEdit bool
}

func NewMessageService(
	repo repository.MessageRepository,
	conversations repository.ConversationRepository,
	fanout *FanoutService,
	log *logger.Logger,
	editWindow time.Duration,
	moderatorEdit bool,
) *MessageService {
	return &MessageService{
		repo:          repo,
		conversations: conversations,
		fanout:        fanout,
		log:           log,
		editWindow:    editWindow,
		moderatorEdit: moderatorEdit,
	}
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	Content        string
	Type           message.Type
	FileURL        *string
	FileName       *string
	FileSize       *int64
	MimeType       *string
	ReplyToID      *uuid.UUID
	Metadata       map[string]interface{}
}

// Send persists the message, bumps the conversation and the recipients' unread
// counters in one transaction, then fans the event out. Fan-out failures never
// surface to the sender.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, input SendMessageInput) (message.Message, error) {
	sender, err := s.requireActiveParticipant(ctx, input.ConversationID, senderID)
	if err != nil {
		return message.Message{}, err
	}
	if !sender.Permissions.CanSendMessages {
		return message.Message{}, chat_errors.ErrForbidden
	}

	msgType := input.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	if !msgType.Valid() || msgType == message.TypeSystem {
		return message.Message{}, chat_errors.ErrInvalidInput
	}

	if input.FileURL != nil && !sender.Permissions.CanSendFiles {
		return message.Message{}, chat_errors.ErrForbidden
	}
	if msgType == message.TypeText && strings.TrimSpace(input.Content) == "" {
		return message.Message{}, chat_errors.ErrInvalidInput
	}
	if msgType != message.TypeText && input.FileURL == nil {
		return message.Message{}, chat_errors.ErrInvalidInput
	}

	if input.ReplyToID != nil {
		parent, err := s.repo.GetByID(ctx, *input.ReplyToID)
		if err != nil {
			return message.Message{}, chat_errors.ErrInvalidInput
		}
		if parent.ConversationID != input.ConversationID {
			return message.Message{}, chat_errors.ErrInvalidInput
		}
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		Content:        input.Content,
		Type:           msgType,
		FileURL:        input.FileURL,
		FileName:       input.FileName,
		FileSize:       input.FileSize,
		MimeType:       input.MimeType,
		ReplyToID:      input.ReplyToID,
		Metadata:       input.Metadata,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}

	s.dispatch(events.EventTypeMessageCreated, msg, senderID)
	return msg, nil
}

// History returns the conversation's messages newest-first, paged with a
// created-before cursor. Deleted messages come back with their placeholder.
func (s *MessageService) History(ctx context.Context, conversationID, userID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	if _, err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByConversation(ctx, conversationID, before, limit)
}

func (s *MessageService) Get(ctx context.Context, messageID, userID uuid.UUID) (message.Message, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if _, err := s.requireActiveParticipant(ctx, msg.ConversationID, userID); err != nil {
		return message.Message{}, chat_errors.ErrNotFound
	}
	return msg, nil
}

// Edit rewrites the content inside the edit window. Only the original sender
// may edit; a moderator may too when the deployment opts in.
func (s *MessageService) Edit(ctx context.Context, messageID, actorID uuid.UUID, actorRole dirdomain.Role, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, chat_errors.ErrInvalidInput
	}

	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if _, err := s.requireActiveParticipant(ctx, msg.ConversationID, actorID); err != nil {
		return message.Message{}, err
	}

	senderID := actorID
	if msg.SenderID != actorID {
		if !s.moderatorEdit || !actorRole.IsAdminTier() {
			return message.Message{}, chat_errors.ErrForbidden
		}
		// Moderation edits bypass the sender guard but keep the window.
		senderID = msg.SenderID
	}

	updated, err := s.repo.EditContent(ctx, messageID, senderID, content, s.editWindow)
	if err != nil {
		return message.Message{}, err
	}

	s.broadcast(events.EventTypeMessageUpdated, updated, actorID)
	return updated, nil
}

// Delete soft-deletes: content becomes the placeholder, the row survives.
// Allowed for the sender, a conversation admin, or (when opted in) an
// admin-tier staff user.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID uuid.UUID, actorRole dirdomain.Role) (message.Message, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}

	actor, err := s.requireActiveParticipant(ctx, msg.ConversationID, actorID)
	if err != nil {
		return message.Message{}, err
	}

	allowed := msg.SenderID == actorID ||
		actor.Role == conversation.RoleAdmin ||
		(s.moderatorEdit && actorRole.IsAdminTier())
	if !allowed {
		return message.Message{}, chat_errors.ErrForbidden
	}

	deleted, err := s.repo.SoftDelete(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}

	s.broadcast(events.EventTypeMessageDeleted, deleted, actorID)
	return deleted, nil
}

// MarkRead records the reader's receipt. The message-level read_at is
// first-reader-wins; the reader's own unread counter resets regardless.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (message.Message, error) {
	msg, err := s.repo.MarkRead(ctx, messageID, userID)
	if err != nil {
		return message.Message{}, err
	}

	s.broadcast(events.EventTypeReceiptRead, msg, userID)
	return msg, nil
}

func (s *MessageService) BulkMarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) ([]message.Message, error) {
	if len(messageIDs) == 0 {
		return nil, chat_errors.ErrInvalidInput
	}
	msgs, err := s.repo.BulkMarkRead(ctx, messageIDs, userID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		s.broadcast(events.EventTypeReceiptRead, msgs[len(msgs)-1], userID)
	}
	return msgs, nil
}

// Search runs over the requester's accessible conversations only. A filter
// naming a conversation outside that set yields an empty result, not an error.
func (s *MessageService) Search(ctx context.Context, userID uuid.UUID, f repository.SearchFilter) ([]message.Message, int64, error) {
	if len(strings.TrimSpace(f.Query)) < minSearchQueryLen {
		return nil, 0, chat_errors.ErrInvalidInput
	}

	accessible, err := s.conversations.AccessibleConversationIDs(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if len(f.ConversationIDs) > 0 {
		allowed := make(map[uuid.UUID]bool, len(accessible))
		for _, id := range accessible {
			allowed[id] = true
		}
		scoped := f.ConversationIDs[:0:0]
		for _, id := range f.ConversationIDs {
			if allowed[id] {
				scoped = append(scoped, id)
			}
		}
		f.ConversationIDs = scoped
	} else {
		f.ConversationIDs = accessible
	}

	return s.repo.Search(ctx, f)
}

func (s *MessageService) requireActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	p, err := s.conversations.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			if _, convErr := s.conversations.GetByID(ctx, conversationID); errors.Is(convErr, chat_errors.ErrNotFound) {
				return conversation.Participant{}, chat_errors.ErrNotFound
			}
			return conversation.Participant{}, chat_errors.ErrNotParticipant
		}
		return conversation.Participant{}, err
	}
	if !p.IsActive {
		return conversation.Participant{}, chat_errors.ErrNotParticipant
	}
	return p, nil
}

func (s *MessageService) dispatch(eventType string, msg message.Message, actorID uuid.UUID) {
	participants, err := s.conversations.GetActiveParticipants(context.Background(), msg.ConversationID)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("fanout skipped, participant lookup failed: %v", err)
		}
		return
	}
	s.fanout.Dispatch(events.New(eventType, msg.ConversationID, actorID, msg), participants, actorID)
}

func (s *MessageService) broadcast(eventType string, msg message.Message, actorID uuid.UUID) {
	participants, err := s.conversations.GetActiveParticipants(context.Background(), msg.ConversationID)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("fanout skipped, participant lookup failed: %v", err)
		}
		return
	}
	s.fanout.Broadcast(events.New(eventType, msg.ConversationID, actorID, msg), participants)
}
