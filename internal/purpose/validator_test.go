package purpose

import (
	"context"
	"testing"

	"advisor-chat/internal/domain/conversation"
	dirdomain "advisor-chat/internal/domain/directory"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users       map[uuid.UUID]dirdomain.User
	assignments map[[2]uuid.UUID]dirdomain.Assignment
	leads       map[[2]uuid.UUID]dirdomain.Lead
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:       make(map[uuid.UUID]dirdomain.User),
		assignments: make(map[[2]uuid.UUID]dirdomain.Assignment),
		leads:       make(map[[2]uuid.UUID]dirdomain.Lead),
	}
}

func (f *fakeDirectory) GetUser(_ context.Context, id uuid.UUID) (dirdomain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return dirdomain.User{}, chat_errors.ErrNotFound
	}
	return u, nil
}

func (f *fakeDirectory) GetAssignment(_ context.Context, studentID, consultantID uuid.UUID) (dirdomain.Assignment, error) {
	a, ok := f.assignments[[2]uuid.UUID{studentID, consultantID}]
	if !ok {
		return dirdomain.Assignment{}, chat_errors.ErrNotFound
	}
	return a, nil
}

func (f *fakeDirectory) GetOfficeLead(_ context.Context, studentID, officeID uuid.UUID) (dirdomain.Lead, error) {
	l, ok := f.leads[[2]uuid.UUID{studentID, officeID}]
	if !ok {
		return dirdomain.Lead{}, chat_errors.ErrNotFound
	}
	return l, nil
}

func (f *fakeDirectory) addUser(role dirdomain.Role, officeID *uuid.UUID) dirdomain.User {
	u := dirdomain.User{ID: uuid.New(), Role: role, OfficeID: officeID}
	f.users[u.ID] = u
	return u
}

func (f *fakeDirectory) assign(student, consultant dirdomain.User) {
	f.assignments[[2]uuid.UUID{student.ID, consultant.ID}] = dirdomain.Assignment{
		ID: uuid.New(), StudentID: student.ID, ConsultantID: consultant.ID, IsActive: true,
	}
}

func (f *fakeDirectory) lead(student dirdomain.User, officeID uuid.UUID) {
	f.leads[[2]uuid.UUID{student.ID, officeID}] = dirdomain.Lead{
		ID: uuid.New(), StudentID: student.ID, OfficeID: officeID, Status: "open",
	}
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	return rej.Reason
}

func TestLeadConsultantPurpose(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)

	student := dir.addUser(dirdomain.RoleStudent, nil)
	consultant := dir.addUser(dirdomain.RoleConsultant, nil)
	otherConsultant := dir.addUser(dirdomain.RoleConsultant, nil)
	dir.assign(student, consultant)

	t.Run("assigned pair accepted", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    student,
			Participants: []dirdomain.User{student, consultant},
			Purpose:      conversation.PurposeLeadConsultant,
		})
		assert.NoError(t, err)
	})

	t.Run("unassigned consultant rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    student,
			Participants: []dirdomain.User{student, otherConsultant},
			Purpose:      conversation.PurposeLeadConsultant,
		})
		assert.Equal(t, "Student is not assigned to this consultant", rejectionReason(t, err))
	})

	t.Run("third party cannot open", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    otherConsultant,
			Participants: []dirdomain.User{student, consultant},
			Purpose:      conversation.PurposeLeadConsultant,
		})
		assert.True(t, IsRejection(err))
	})

	t.Run("wrong shape rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    consultant,
			Participants: []dirdomain.User{consultant, otherConsultant},
			Purpose:      conversation.PurposeLeadConsultant,
		})
		assert.True(t, IsRejection(err))
	})
}

func TestSameOfficePairPurposes(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)

	officeA := uuid.New()
	officeB := uuid.New()
	manager := dir.addUser(dirdomain.RoleManager, &officeA)
	consultant := dir.addUser(dirdomain.RoleConsultant, &officeA)
	receptionist := dir.addUser(dirdomain.RoleReceptionist, &officeA)
	remoteConsultant := dir.addUser(dirdomain.RoleConsultant, &officeB)

	t.Run("manager and consultant same office", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, consultant},
			Purpose:      conversation.PurposeManagerConsultant,
		})
		assert.NoError(t, err)
	})

	t.Run("cross-office pair rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, remoteConsultant},
			Purpose:      conversation.PurposeManagerConsultant,
		})
		assert.Equal(t, "Both participants must belong to the same office", rejectionReason(t, err))
	})

	t.Run("manager and receptionist same office", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    receptionist,
			Participants: []dirdomain.User{manager, receptionist},
			Purpose:      conversation.PurposeManagerReceptionist,
		})
		assert.NoError(t, err)
	})

	t.Run("consultant in receptionist slot rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, consultant},
			Purpose:      conversation.PurposeManagerReceptionist,
		})
		assert.True(t, IsRejection(err))
	})
}

func TestManagerLeadPurpose(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)

	office := uuid.New()
	manager := dir.addUser(dirdomain.RoleManager, &office)
	student := dir.addUser(dirdomain.RoleStudent, nil)
	strangerStudent := dir.addUser(dirdomain.RoleStudent, nil)
	dir.lead(student, office)

	t.Run("lead in manager office accepted", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, student},
			Purpose:      conversation.PurposeManagerLead,
		})
		assert.NoError(t, err)
	})

	t.Run("no lead record rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, strangerStudent},
			Purpose:      conversation.PurposeManagerLead,
		})
		assert.Equal(t, "Student has no lead record in this office", rejectionReason(t, err))
	})

	t.Run("student cannot open", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    student,
			Participants: []dirdomain.User{manager, student},
			Purpose:      conversation.PurposeManagerLead,
		})
		assert.True(t, IsRejection(err))
	})
}

func TestGeneralPurpose(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)

	officeA := uuid.New()
	officeB := uuid.New()
	manager := dir.addUser(dirdomain.RoleManager, &officeA)
	consultant := dir.addUser(dirdomain.RoleConsultant, &officeA)
	remote := dir.addUser(dirdomain.RoleConsultant, &officeB)
	student := dir.addUser(dirdomain.RoleStudent, nil)

	t.Run("same office staff accepted", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, consultant, student},
			Purpose:      conversation.PurposeGeneral,
		})
		assert.NoError(t, err)
	})

	t.Run("staff from another office rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    manager,
			Participants: []dirdomain.User{manager, remote},
			Purpose:      conversation.PurposeGeneral,
		})
		assert.Equal(t, "Staff participants must belong to the same office", rejectionReason(t, err))
	})
}

func TestSupportPurpose(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)

	admin := dir.addUser(dirdomain.RoleAdmin, nil)
	student := dir.addUser(dirdomain.RoleStudent, nil)
	consultant := dir.addUser(dirdomain.RoleConsultant, nil)

	t.Run("with admin accepted", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    student,
			Participants: []dirdomain.User{student, admin},
			Purpose:      conversation.PurposeSupport,
		})
		assert.NoError(t, err)
	})

	t.Run("without admin rejected", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    student,
			Participants: []dirdomain.User{student, consultant},
			Purpose:      conversation.PurposeSupport,
		})
		assert.Equal(t, "Support conversations require an admin participant", rejectionReason(t, err))
	})
}

func TestValidateInput(t *testing.T) {
	dir := newFakeDirectory()
	v := NewValidator(dir)
	user := dir.addUser(dirdomain.RoleStudent, nil)

	t.Run("unknown purpose", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    user,
			Participants: []dirdomain.User{user, user},
			Purpose:      conversation.Purpose("escalation"),
		})
		assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
	})

	t.Run("too few participants", func(t *testing.T) {
		err := v.Validate(context.Background(), Request{
			Requester:    user,
			Participants: []dirdomain.User{user},
			Purpose:      conversation.PurposeGeneral,
		})
		assert.True(t, IsRejection(err))
	})
}
