package message

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeVideo  Type = "video"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeFile, TypeSystem:
		return true
	}
	return false
}

// DeletedPlaceholder replaces the content of a soft-deleted message. The row
// and id survive for referential integrity.
const DeletedPlaceholder = "This message was deleted"

type Message struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID              `gorm:"type:uuid;not null;index:idx_messages_history,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID              `gorm:"type:uuid;not null;index:idx_messages_sender" json:"sender_id"`
	Content        string                 `gorm:"type:text" json:"content"`
	Type           Type                   `gorm:"type:varchar(16);default:'text';not null" json:"type"`
	FileURL        *string                `gorm:"type:text" json:"file_url,omitempty"`
	FileName       *string                `gorm:"type:text" json:"file_name,omitempty"`
	FileSize       *int64                 `json:"file_size,omitempty"`
	MimeType       *string                `gorm:"type:varchar(128)" json:"mime_type,omitempty"`
	ReplyToID      *uuid.UUID             `gorm:"type:uuid" json:"reply_to_id,omitempty"`
	IsEdited       bool                   `gorm:"default:false" json:"is_edited"`
	EditedAt       *time.Time             `json:"edited_at,omitempty"`
	DeliveredAt    *time.Time             `json:"delivered_at,omitempty"`
	ReadAt         *time.Time             `json:"read_at,omitempty"`
	DeletedAt      *time.Time             `json:"deleted_at,omitempty"`
	Metadata       map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time              `gorm:"default:CURRENT_TIMESTAMP;index:idx_messages_history,priority:2,sort:desc" json:"created_at"`
}

func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}
