// Package directory is the read-only adapter over the CRM's user, assignment
// and lead tables. The messaging engine never writes through it.
package directory

import (
	"context"
	"errors"

	"advisor-chat/internal/domain/directory"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Adapter interface {
	GetUser(ctx context.Context, id uuid.UUID) (directory.User, error)
	GetAssignment(ctx context.Context, studentID, consultantID uuid.UUID) (directory.Assignment, error)
	GetOfficeLead(ctx context.Context, studentID, officeID uuid.UUID) (directory.Lead, error)
}

type GormAdapter struct {
	db *gorm.DB
}

func NewAdapter(db *gorm.DB) Adapter {
	return &GormAdapter{db: db}
}

func (a *GormAdapter) GetUser(ctx context.Context, id uuid.UUID) (directory.User, error) {
	var u directory.User
	err := a.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return directory.User{}, chat_errors.ErrNotFound
		}
		return directory.User{}, err
	}
	return u, nil
}

func (a *GormAdapter) GetAssignment(ctx context.Context, studentID, consultantID uuid.UUID) (directory.Assignment, error) {
	var assignment directory.Assignment
	err := a.db.WithContext(ctx).
		Where("student_id = ? AND consultant_id = ? AND is_active = true", studentID, consultantID).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return directory.Assignment{}, chat_errors.ErrNotFound
		}
		return directory.Assignment{}, err
	}
	return assignment, nil
}

func (a *GormAdapter) GetOfficeLead(ctx context.Context, studentID, officeID uuid.UUID) (directory.Lead, error) {
	var lead directory.Lead
	err := a.db.WithContext(ctx).
		Where("student_id = ? AND office_id = ?", studentID, officeID).
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return directory.Lead{}, chat_errors.ErrNotFound
		}
		return directory.Lead{}, err
	}
	return lead, nil
}
