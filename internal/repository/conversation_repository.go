package repository

import (
	"context"
	"errors"
	"time"

	"advisor-chat/internal/domain/conversation"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation, participants []*conversation.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return chat_errors.ErrAlreadyExists
			}
			return err
		}
		for _, p := range participants {
			p.ConversationID = c.ID
			if err := tx.Create(p).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return chat_errors.ErrAlreadyExists
				}
				return err
			}
		}
		return nil
	})
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, f ConversationFilter) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ? AND is_active = true", userID)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?)", subQuery)

	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Purpose != "" {
		q = q.Where("purpose = ?", f.Purpose)
	}
	if f.Archived != nil {
		q = q.Where("archived = ?", *f.Archived)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := (page - 1) * limit

	if err := q.
		Preload("Participants").
		Order("last_message_at DESC NULLS LAST, updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) UpdateDetails(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived":   archived,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) FindDirectBetween(ctx context.Context, purpose conversation.Purpose, userA, userB uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id IN (?, ?)", userA, userB).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?) AND purpose = ? AND type = ?", subQuery, purpose, conversation.TypeDirect).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Participant{}, chat_errors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_active = true", conversationID).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *PostgresConversationRepository) DeactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = true", conversationID, userID).
		Updates(map[string]interface{}{
			"is_active": false,
			"left_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) ReactivateParticipant(ctx context.Context, conversationID, userID uuid.UUID, addedBy *uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = false", conversationID, userID).
		Updates(map[string]interface{}{
			"is_active": true,
			"left_at":   nil,
			"joined_at": time.Now(),
			"added_by":  addedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	return r.setParticipantFlag(ctx, conversationID, userID, "is_muted", muted)
}

func (r *PostgresConversationRepository) SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	return r.setParticipantFlag(ctx, conversationID, userID, "is_pinned", pinned)
}

func (r *PostgresConversationRepository) setParticipantFlag(ctx context.Context, conversationID, userID uuid.UUID, column string, value bool) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = true", conversationID, userID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateLastSeen(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_seen_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) AccessibleConversationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("user_id = ? AND is_active = true", userID).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
