package directory

import (
	"time"

	"github.com/google/uuid"
)

// Role is the organizational role carried by the CRM directory, not the
// per-conversation participant role.
type Role string

const (
	RoleStudent      Role = "student"
	RoleConsultant   Role = "consultant"
	RoleManager      Role = "manager"
	RoleReceptionist Role = "receptionist"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
)

func (r Role) IsStaff() bool {
	switch r {
	case RoleConsultant, RoleManager, RoleReceptionist, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) IsAdminTier() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type User struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string     `gorm:"type:text" json:"full_name"`
	Email    string     `gorm:"type:text" json:"email"`
	Role     Role       `gorm:"type:varchar(32);not null" json:"role"`
	OfficeID *uuid.UUID `gorm:"type:uuid;index:idx_users_office" json:"office_id,omitempty"`
}

// Assignment links a student to the consultant responsible for them.
type Assignment struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_assignments_pair,priority:1" json:"student_id"`
	ConsultantID uuid.UUID  `gorm:"type:uuid;not null;index:idx_assignments_pair,priority:2" json:"consultant_id"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	AssignedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"assigned_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Lead is a student's enquiry record held by a specific office.
type Lead struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index:idx_leads_student" json:"student_id"`
	OfficeID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leads_office" json:"office_id"`
	Status    string    `gorm:"type:varchar(32);default:'open'" json:"status"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
