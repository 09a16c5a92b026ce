package repository

import (
	"context"
	"errors"
	"time"

	"advisor-chat/internal/domain/conversation"
	"advisor-chat/internal/domain/message"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return chat_errors.ErrAlreadyExists
			}
			return err
		}

		if err := tx.Model(&conversation.Conversation{}).
			Where("id = ?", m.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": m.ID,
				"last_message_at": m.CreatedAt,
				"updated_at":      m.CreatedAt,
			}).Error; err != nil {
			return err
		}

		// Increment, never read-then-write: concurrent sends must not lose
		// counts.
		return tx.Model(&conversation.Participant{}).
			Where("conversation_id = ? AND user_id <> ? AND is_active = true", m.ConversationID, m.SenderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, chat_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)

	if before != nil {
		q = q.Where("created_at < ?", *before)
	}

	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) EditContent(ctx context.Context, id, senderID uuid.UUID, content string, window time.Duration) (message.Message, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND sender_id = ? AND deleted_at IS NULL AND created_at > ?", id, senderID, now.Add(-window)).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": now,
		})
	if res.Error != nil {
		return message.Message{}, res.Error
	}
	if res.RowsAffected == 0 {
		// The guard failed; read the row to report why.
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return message.Message{}, err
		}
		if m.Deleted() {
			return message.Message{}, chat_errors.ErrMessageDeleted
		}
		if m.SenderID != senderID {
			return message.Message{}, chat_errors.ErrForbidden
		}
		return message.Message{}, chat_errors.ErrEditWindowExpired
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) (message.Message, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"content":    message.DeletedPlaceholder,
			"deleted_at": time.Now(),
			"metadata":   gorm.Expr(`jsonb_set(COALESCE(metadata, '{}'), '{deleted}', 'true')`),
		})
	if res.Error != nil {
		return message.Message{}, res.Error
	}
	if res.RowsAffected == 0 {
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return message.Message{}, err
		}
		if m.Deleted() {
			return message.Message{}, chat_errors.ErrMessageDeleted
		}
		return message.Message{}, chat_errors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", messageID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chat_errors.ErrNotFound
			}
			return err
		}

		res := tx.Model(&conversation.Participant{}).
			Where("conversation_id = ? AND user_id = ? AND is_active = true", m.ConversationID, userID).
			Updates(map[string]interface{}{
				"last_read_at": time.Now(),
				"unread_count": 0,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotParticipant
		}

		// First reader wins; the sender never reads their own message.
		if m.SenderID != userID && m.ReadAt == nil {
			if err := tx.Model(&message.Message{}).
				Where("id = ? AND read_at IS NULL", messageID).
				Update("read_at", time.Now()).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", messageID).First(&m).Error
	})
	if err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) BulkMarkRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) ([]message.Message, error) {
	var marked []message.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var messages []message.Message
		if err := tx.Where("id IN ?", messageIDs).Find(&messages).Error; err != nil {
			return err
		}

		seenConversations := make(map[uuid.UUID]bool)
		for _, m := range messages {
			if !seenConversations[m.ConversationID] {
				res := tx.Model(&conversation.Participant{}).
					Where("conversation_id = ? AND user_id = ? AND is_active = true", m.ConversationID, userID).
					Updates(map[string]interface{}{
						"last_read_at": time.Now(),
						"unread_count": 0,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return chat_errors.ErrNotParticipant
				}
				seenConversations[m.ConversationID] = true
			}

			if m.SenderID != userID && m.ReadAt == nil {
				if err := tx.Model(&message.Message{}).
					Where("id = ? AND read_at IS NULL", m.ID).
					Update("read_at", time.Now()).Error; err != nil {
					return err
				}
			}
			marked = append(marked, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversation.Participant{}).
			Where("conversation_id = ? AND user_id = ? AND is_active = true", conversationID, userID).
			Updates(map[string]interface{}{
				"last_read_at": time.Now(),
				"unread_count": 0,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotParticipant
		}

		return tx.Model(&message.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, userID).
			Update("read_at", time.Now()).Error
	})
}

func (r *PostgresMessageRepository) Search(ctx context.Context, f SearchFilter) ([]message.Message, int64, error) {
	if len(f.ConversationIDs) == 0 {
		return nil, 0, nil
	}

	var messages []message.Message
	var total int64

	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id IN ? AND content ILIKE ? AND deleted_at IS NULL", f.ConversationIDs, "%"+f.Query+"%")

	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.SenderID != nil {
		q = q.Where("sender_id = ?", *f.SenderID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
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

	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
