package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"advisor-chat/internal/directory"
	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	"advisor-chat/internal/domain/message"
	"advisor-chat/internal/events"
	"advisor-chat/internal/purpose"
	"advisor-chat/internal/repository"
	chat_errors "advisor-chat/pkg/errors"
	"advisor-chat/pkg/logger"

	"github.com/google/uuid"
)

type ConversationService struct {
	repo      repository.ConversationRepository
	messages  repository.MessageRepository
	dir       directory.Adapter
	validator *purpose.Validator
	fanout    *FanoutService
	log       *logger.Logger
}

func NewConversationService(
	repo repository.ConversationRepository,
	messages repository.MessageRepository,
	dir directory.Adapter,
	validator *purpose.Validator,
	fanout *FanoutService,
	log *logger.Logger,
) *ConversationService {
	return &ConversationService{
		repo:      repo,
		messages:  messages,
		dir:       dir,
		validator: validator,
		fanout:    fanout,
		log:       log,
	}
}

type CreateConversationInput struct {
	Type           conversation.Type
	Purpose        conversation.Purpose
	ParticipantIDs []uuid.UUID
	Name           *string
	Settings       map[string]interface{}
	Metadata       map[string]interface{}
}

// Create runs the purpose rules first; nothing is persisted on rejection. The
// creator joins as admin, everyone else as member. For the two-party
// relationship purposes an existing conversation between the same pair is
// returned instead of a duplicate.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, input CreateConversationInput) (conversation.Conversation, error) {
	requester, err := s.dir.GetUser(ctx, creatorID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	memberIDs := dedupeIDs(append([]uuid.UUID{creatorID}, input.ParticipantIDs...))
	members := make([]dirdomain.User, 0, len(memberIDs))
	for _, id := range memberIDs {
		u, err := s.dir.GetUser(ctx, id)
		if err != nil {
			return conversation.Conversation{}, err
		}
		members = append(members, u)
	}

	if err := s.validator.Validate(ctx, purpose.Request{
		Requester:    requester,
		Participants: members,
		Purpose:      input.Purpose,
	}); err != nil {
		return conversation.Conversation{}, err
	}

	convType := input.Type
	if convType == "" {
		convType = input.Purpose.DefaultType()
	}

	// Two-party purposes resolve to a canonical pair; reuse the existing
	// conversation rather than minting a second one.
	if input.Purpose.ClosedToAdditions() && len(memberIDs) == 2 {
		existing, err := s.repo.FindDirectBetween(ctx, input.Purpose, memberIDs[0], memberIDs[1])
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, chat_errors.ErrNotFound) {
			return conversation.Conversation{}, err
		}
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      convType,
		Purpose:   input.Purpose,
		Name:      input.Name,
		Settings:  input.Settings,
		Metadata:  input.Metadata,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	participants := make([]*conversation.Participant, 0, len(memberIDs))
	for _, id := range memberIDs {
		p := &conversation.Participant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           conversation.RoleMember,
			JoinedAt:       now,
			IsActive:       true,
			Permissions:    conversation.DefaultMemberPermissions(),
			Preferences:    conversation.DefaultPreferences(),
		}
		if id == creatorID {
			p.Role = conversation.RoleAdmin
			p.Permissions = conversation.AdminPermissions()
		} else {
			p.AddedBy = &creatorID
		}
		participants = append(participants, p)
	}

	if err := s.repo.Create(ctx, &conv, participants); err != nil {
		return conversation.Conversation{}, err
	}

	created, err := s.repo.GetByID(ctx, conv.ID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	s.fanout.Dispatch(
		events.New(events.EventTypeConversationCreated, conv.ID, creatorID, created),
		created.Participants,
		creatorID,
	)
	return created, nil
}

// GetForUser hides conversations the requester is not an active member of
// behind a not-found, so the id leaks nothing.
func (s *ConversationService) GetForUser(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !isActiveParticipant(conv.Participants, userID) {
		return conversation.Conversation{}, chat_errors.ErrNotFound
	}
	s.TouchLastSeen(ctx, conversationID, userID)
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, f repository.ConversationFilter) ([]conversation.Conversation, int64, error) {
	return s.repo.ListForUser(ctx, userID, f)
}

type UpdateConversationInput struct {
	Name     *string
	Settings map[string]interface{}
	Metadata map[string]interface{}
}

func (s *ConversationService) Update(ctx context.Context, conversationID, actorID uuid.UUID, input UpdateConversationInput) (conversation.Conversation, error) {
	actor, err := s.requireActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !actor.Permissions.CanEditConversation {
		return conversation.Conversation{}, chat_errors.ErrForbidden
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Settings != nil {
		updates["settings"] = input.Settings
	}
	if input.Metadata != nil {
		updates["metadata"] = input.Metadata
	}
	if len(updates) == 0 {
		return conversation.Conversation{}, chat_errors.ErrInvalidInput
	}

	if err := s.repo.UpdateDetails(ctx, conversationID, updates); err != nil {
		return conversation.Conversation{}, err
	}

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	s.fanout.Broadcast(
		events.New(events.EventTypeConversationUpdated, conversationID, actorID, conv),
		conv.Participants,
	)
	return conv, nil
}

// AddParticipants is refused outright for the relationship purposes; their
// participant shape was validated at creation and stays closed.
func (s *ConversationService) AddParticipants(ctx context.Context, conversationID, actorID uuid.UUID, userIDs []uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	actor, err := s.requireActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !actor.Permissions.CanAddMembers {
		return conversation.Conversation{}, chat_errors.ErrForbidden
	}
	if conv.Purpose.ClosedToAdditions() {
		return conversation.Conversation{}, chat_errors.ErrForbidden
	}

	now := time.Now()
	for _, id := range dedupeIDs(userIDs) {
		user, err := s.dir.GetUser(ctx, id)
		if err != nil {
			return conversation.Conversation{}, err
		}

		existing, err := s.repo.GetParticipant(ctx, conversationID, id)
		switch {
		case err == nil && existing.IsActive:
			return conversation.Conversation{}, chat_errors.ErrAlreadyExists
		case err == nil:
			if err := s.repo.ReactivateParticipant(ctx, conversationID, id, &actorID); err != nil {
				return conversation.Conversation{}, err
			}
		case errors.Is(err, chat_errors.ErrNotFound):
			p := &conversation.Participant{
				ConversationID: conversationID,
				UserID:         id,
				Role:           conversation.RoleMember,
				AddedBy:        &actorID,
				JoinedAt:       now,
				IsActive:       true,
				Permissions:    conversation.DefaultMemberPermissions(),
				Preferences:    conversation.DefaultPreferences(),
			}
			if err := s.repo.AddParticipant(ctx, p); err != nil {
				return conversation.Conversation{}, err
			}
		default:
			return conversation.Conversation{}, err
		}

		s.systemMessage(ctx, conversationID, actorID, fmt.Sprintf("%s joined the conversation", user.FullName))
	}

	updated, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	s.fanout.Dispatch(
		events.New(events.EventTypeParticipantAdded, conversationID, actorID, updated.Participants),
		updated.Participants,
		actorID,
	)
	return updated, nil
}

// RemoveParticipant soft-removes: the row stays, leftAt is set. Self-removal
// needs no permission.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, actorID, targetID uuid.UUID) error {
	actor, err := s.requireActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if actorID != targetID && !actor.Permissions.CanRemoveMembers {
		return chat_errors.ErrForbidden
	}

	if err := s.repo.DeactivateParticipant(ctx, conversationID, targetID); err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return chat_errors.ErrNotFound
		}
		return err
	}

	target, err := s.dir.GetUser(ctx, targetID)
	if err == nil {
		s.systemMessage(ctx, conversationID, actorID, fmt.Sprintf("%s left the conversation", target.FullName))
	}

	eventType := events.EventTypeParticipantRemoved
	if actorID == targetID {
		eventType = events.EventTypeParticipantLeft
	}

	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil
	}
	s.fanout.Broadcast(events.New(eventType, conversationID, actorID, targetID), participants)
	return nil
}

func (s *ConversationService) SetArchived(ctx context.Context, conversationID, actorID uuid.UUID, archived bool) error {
	actor, err := s.requireActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !actor.Permissions.CanEditConversation {
		return chat_errors.ErrForbidden
	}

	if err := s.repo.SetArchived(ctx, conversationID, archived); err != nil {
		return err
	}

	eventType := events.EventTypeConversationArchived
	if !archived {
		eventType = events.EventTypeConversationUnarchived
	}

	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil
	}
	s.fanout.Broadcast(events.New(eventType, conversationID, actorID, archived), participants)
	return nil
}

// Typing forwards the indicator straight to fan-out. Nothing is persisted and
// nothing is notified offline; a dropped typing event costs nothing.
func (s *ConversationService) Typing(ctx context.Context, conversationID, userID uuid.UUID, started bool) error {
	if _, err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	eventType := events.EventTypeTypingStarted
	if !started {
		eventType = events.EventTypeTypingStopped
	}

	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return err
	}
	s.fanout.Broadcast(events.New(eventType, conversationID, userID, nil), participants)
	return nil
}

// MarkRead resets the acting participant's unread counter and read marker for
// the whole conversation.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.messages.MarkConversationRead(ctx, conversationID, userID); err != nil {
		return err
	}

	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil
	}
	s.fanout.Broadcast(events.New(events.EventTypeReceiptRead, conversationID, userID, nil), participants)
	return nil
}

func (s *ConversationService) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	return s.repo.SetMuted(ctx, conversationID, userID, muted)
}

func (s *ConversationService) SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	return s.repo.SetPinned(ctx, conversationID, userID, pinned)
}

func (s *ConversationService) TouchLastSeen(ctx context.Context, conversationID, userID uuid.UUID) {
	if err := s.repo.UpdateLastSeen(ctx, conversationID, userID); err != nil && s.log != nil {
		s.log.Warnf("last seen update failed: %v", err)
	}
}

func (s *ConversationService) requireActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			// Distinguish a missing conversation from a non-member.
			if _, convErr := s.repo.GetByID(ctx, conversationID); errors.Is(convErr, chat_errors.ErrNotFound) {
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

// systemMessage records membership changes in the timeline. Failures are
// logged only; the membership change itself already succeeded.
func (s *ConversationService) systemMessage(ctx context.Context, conversationID, actorID uuid.UUID, content string) {
	if s.messages == nil {
		return
	}
	m := &message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       actorID,
		Content:        content,
		Type:           message.TypeSystem,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, m); err != nil && s.log != nil {
		s.log.Warnf("system message failed: %v", err)
	}
}

func isActiveParticipant(participants []conversation.Participant, userID uuid.UUID) bool {
	for _, p := range participants {
		if p.UserID == userID && p.IsActive {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
