// Package purpose gates conversation creation. Every purpose maps to one rule
// variant; a rule checks participant shape, role composition, the relationship
// fact behind the purpose, and that the requester is an entitled party.
package purpose

import (
	"context"
	"errors"
	"fmt"

	"advisor-chat/internal/directory"
	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
)

// Request is a proposed conversation with every participant already resolved
// against the directory.
type Request struct {
	Requester    dirdomain.User
	Participants []dirdomain.User
	Purpose      conversation.Purpose
}

// Rejection carries the human-readable reason a purpose rule refused the
// conversation. It maps to 403 at the transport layer.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func Reject(format string, args ...interface{}) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}

type Rule interface {
	Evaluate(ctx context.Context, req Request) error
}

type Validator struct {
	rules map[conversation.Purpose]Rule
}

func NewValidator(dir directory.Adapter) *Validator {
	return &Validator{
		rules: map[conversation.Purpose]Rule{
			conversation.PurposeLeadConsultant:      &leadConsultantRule{dir: dir},
			conversation.PurposeManagerConsultant:   &sameOfficePairRule{pairRole: dirdomain.RoleConsultant},
			conversation.PurposeManagerReceptionist: &sameOfficePairRule{pairRole: dirdomain.RoleReceptionist},
			conversation.PurposeManagerLead:         &managerLeadRule{dir: dir},
			conversation.PurposeGeneral:             &generalRule{},
			conversation.PurposeSupport:             &supportRule{},
		},
	}
}

// Validate returns nil to accept, a *Rejection to refuse with a reason, or a
// plain error on directory failure. Nothing is persisted on any non-nil return.
func (v *Validator) Validate(ctx context.Context, req Request) error {
	if !req.Purpose.Valid() {
		return chat_errors.ErrInvalidInput
	}
	if len(req.Participants) < 2 {
		return Reject("A conversation requires at least 2 participants")
	}
	rule, ok := v.rules[req.Purpose]
	if !ok {
		return chat_errors.ErrInvalidInput
	}
	return rule.Evaluate(ctx, req)
}

// leadConsultantRule admits exactly one student and one consultant bound by an
// active assignment; the requester must be one of them.
type leadConsultantRule struct {
	dir directory.Adapter
}

func (r *leadConsultantRule) Evaluate(ctx context.Context, req Request) error {
	if len(req.Participants) != 2 {
		return Reject("A %s conversation requires exactly 2 participants", req.Purpose)
	}
	student, ok := findByRole(req.Participants, dirdomain.RoleStudent)
	if !ok {
		return Reject("A %s conversation requires a student participant", req.Purpose)
	}
	consultant, ok := findByRole(req.Participants, dirdomain.RoleConsultant)
	if !ok {
		return Reject("A %s conversation requires a consultant participant", req.Purpose)
	}

	_, err := r.dir.GetAssignment(ctx, student.ID, consultant.ID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return Reject("Student is not assigned to this consultant")
		}
		return err
	}

	if req.Requester.ID != student.ID && req.Requester.ID != consultant.ID {
		return Reject("Only the student or the assigned consultant may open this conversation")
	}
	return nil
}

// sameOfficePairRule covers manager_consultant and manager_receptionist: a
// manager and a counterpart from the same office, opened by either of them.
type sameOfficePairRule struct {
	pairRole dirdomain.Role
}

func (r *sameOfficePairRule) Evaluate(ctx context.Context, req Request) error {
	if len(req.Participants) != 2 {
		return Reject("A %s conversation requires exactly 2 participants", req.Purpose)
	}
	manager, ok := findByRole(req.Participants, dirdomain.RoleManager)
	if !ok {
		return Reject("A %s conversation requires a manager participant", req.Purpose)
	}
	other, ok := findByRole(req.Participants, r.pairRole)
	if !ok {
		return Reject("A %s conversation requires a %s participant", req.Purpose, r.pairRole)
	}

	if manager.OfficeID == nil || other.OfficeID == nil || *manager.OfficeID != *other.OfficeID {
		return Reject("Both participants must belong to the same office")
	}

	if req.Requester.ID != manager.ID && req.Requester.ID != other.ID {
		return Reject("Only the two participants may open this conversation")
	}
	return nil
}

// managerLeadRule admits a manager and a student whose lead record sits in the
// manager's office; only the manager may open it.
type managerLeadRule struct {
	dir directory.Adapter
}

func (r *managerLeadRule) Evaluate(ctx context.Context, req Request) error {
	if len(req.Participants) != 2 {
		return Reject("A %s conversation requires exactly 2 participants", req.Purpose)
	}
	manager, ok := findByRole(req.Participants, dirdomain.RoleManager)
	if !ok {
		return Reject("A %s conversation requires a manager participant", req.Purpose)
	}
	student, ok := findByRole(req.Participants, dirdomain.RoleStudent)
	if !ok {
		return Reject("A %s conversation requires a student participant", req.Purpose)
	}
	if manager.OfficeID == nil {
		return Reject("Manager has no office")
	}

	_, err := r.dir.GetOfficeLead(ctx, student.ID, *manager.OfficeID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return Reject("Student has no lead record in this office")
		}
		return err
	}

	if req.Requester.ID != manager.ID {
		return Reject("Only the office manager may open this conversation")
	}
	return nil
}

// generalRule keeps staff chatter inside one office: every staff participant
// must share the office anchor, students are always admissible.
type generalRule struct{}

func (r *generalRule) Evaluate(ctx context.Context, req Request) error {
	anchor := officeAnchor(req)
	for _, p := range req.Participants {
		if !p.Role.IsStaff() {
			continue
		}
		if p.OfficeID == nil || anchor == uuid.Nil || *p.OfficeID != anchor {
			return Reject("Staff participants must belong to the same office")
		}
	}
	return nil
}

// supportRule only demands staff presence: at least one admin-tier participant.
type supportRule struct{}

func (r *supportRule) Evaluate(ctx context.Context, req Request) error {
	for _, p := range req.Participants {
		if p.Role.IsAdminTier() {
			return nil
		}
	}
	return Reject("Support conversations require an admin participant")
}

func findByRole(participants []dirdomain.User, role dirdomain.Role) (dirdomain.User, bool) {
	for _, p := range participants {
		if p.Role == role {
			return p, true
		}
	}
	return dirdomain.User{}, false
}

// officeAnchor picks the office every staff participant must match: the
// requester's office when the requester is staff, otherwise the first staff
// participant's.
func officeAnchor(req Request) uuid.UUID {
	if req.Requester.Role.IsStaff() && req.Requester.OfficeID != nil {
		return *req.Requester.OfficeID
	}
	for _, p := range req.Participants {
		if p.Role.IsStaff() && p.OfficeID != nil {
			return *p.OfficeID
		}
	}
	return uuid.Nil
}
