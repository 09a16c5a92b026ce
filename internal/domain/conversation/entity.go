package conversation

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDirect  Type = "direct"
	TypeGroup   Type = "group"
	TypeSupport Type = "support"
)

// Purpose says why a conversation exists. It decides the participant shape a
// conversation may have and who is entitled to open it.
type Purpose string

const (
	PurposeLeadConsultant      Purpose = "lead_consultant"
	PurposeManagerConsultant   Purpose = "manager_consultant"
	PurposeManagerReceptionist Purpose = "manager_receptionist"
	PurposeManagerLead         Purpose = "manager_lead"
	PurposeGeneral             Purpose = "general"
	PurposeSupport             Purpose = "support"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLeadConsultant, PurposeManagerConsultant, PurposeManagerReceptionist,
		PurposeManagerLead, PurposeGeneral, PurposeSupport:
		return true
	}
	return false
}

// ClosedToAdditions reports whether the participant set is fixed after
// creation. The four relationship purposes are two-party by definition.
func (p Purpose) ClosedToAdditions() bool {
	switch p {
	case PurposeLeadConsultant, PurposeManagerConsultant, PurposeManagerReceptionist, PurposeManagerLead:
		return true
	}
	return false
}

// DefaultType maps a purpose to the conversation type used when the request
// does not name one.
func (p Purpose) DefaultType() Type {
	switch p {
	case PurposeSupport:
		return TypeSupport
	case PurposeGeneral:
		return TypeGroup
	}
	return TypeDirect
}

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
)

type Conversation struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Type          Type                   `gorm:"type:varchar(16);not null" json:"type"`
	Purpose       Purpose                `gorm:"type:varchar(32);not null;index:idx_conversations_purpose" json:"purpose"`
	Name          *string                `gorm:"type:text" json:"name,omitempty"`
	Settings      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"settings,omitempty"`
	LastMessageID *uuid.UUID             `gorm:"type:uuid" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time             `gorm:"index:idx_conversations_last_message,sort:desc" json:"last_message_at,omitempty"`
	Archived      bool                   `gorm:"default:false" json:"archived"`
	Metadata      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`
	CreatedBy     uuid.UUID              `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt     time.Time              `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// Permissions is the per-participant capability set, embedded in the
// participant row.
type Permissions struct {
	CanSendMessages     bool `gorm:"default:true" json:"can_send_messages"`
	CanSendFiles        bool `gorm:"default:true" json:"can_send_files"`
	CanAddMembers       bool `gorm:"default:false" json:"can_add_members"`
	CanRemoveMembers    bool `gorm:"default:false" json:"can_remove_members"`
	CanEditConversation bool `gorm:"default:false" json:"can_edit_conversation"`
}

type Preferences struct {
	Notifications      bool `gorm:"default:true" json:"notifications"`
	SoundEnabled       bool `gorm:"default:true" json:"sound_enabled"`
	EmailNotifications bool `gorm:"default:true" json:"email_notifications"`
}

// Participant is one row per conversation and user. A participant is never
// deleted; leaving sets LeftAt and clears IsActive.
type Participant struct {
	ConversationID uuid.UUID   `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID   `gorm:"type:uuid;primaryKey;index:idx_participants_user" json:"user_id"`
	Role           Role        `gorm:"type:varchar(16);default:'member';not null" json:"role"`
	AddedBy        *uuid.UUID  `gorm:"type:uuid" json:"added_by,omitempty"`
	JoinedAt       time.Time   `gorm:"default:CURRENT_TIMESTAMP" json:"joined_at"`
	LeftAt         *time.Time  `json:"left_at,omitempty"`
	LastReadAt     *time.Time  `json:"last_read_at,omitempty"`
	LastSeenAt     *time.Time  `json:"last_seen_at,omitempty"`
	IsActive       bool        `gorm:"default:true" json:"is_active"`
	IsMuted        bool        `gorm:"default:false" json:"is_muted"`
	IsPinned       bool        `gorm:"default:false" json:"is_pinned"`
	UnreadCount    int64       `gorm:"default:0" json:"unread_count"`
	Permissions    Permissions `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	Preferences    Preferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
}

// DefaultMemberPermissions covers plain members: they may talk but not manage
// the conversation.
func DefaultMemberPermissions() Permissions {
	return Permissions{
		CanSendMessages: true,
		CanSendFiles:    true,
	}
}

// AdminPermissions is the creator's default capability set.
func AdminPermissions() Permissions {
	return Permissions{
		CanSendMessages:     true,
		CanSendFiles:        true,
		CanAddMembers:       true,
		CanRemoveMembers:    true,
		CanEditConversation: true,
	}
}

func DefaultPreferences() Preferences {
	return Preferences{
		Notifications:      true,
		SoundEnabled:       true,
		EmailNotifications: true,
	}
}
