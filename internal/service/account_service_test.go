package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetCode достаёт код из последнего уведомления и проверяет, что он не попал в текст и в логи
func resetCode(t *testing.T, f *fixture, userID int64) string {
	t.Helper()
	note := f.notes.Last(t, userID)
	require.Equal(t, "Password reset code", note.Text)
	require.NotEmpty(t, note.Secret)
	assert.NotContains(t, note.Text, note.Secret)

	for _, entry := range f.logs.All() {
		assert.NotContains(t, entry.Message, note.Secret)
		for key, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), note.Secret, key)
		}
	}
	return note.Secret
}

func TestAccountService_RegistrationNeedsApproval(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, RegisterInput{
		Email:    "  New.Student@Example.com ",
		Password: "secret123",
		Name:     "New Student",
	})
	require.NoError(t, err)
	assert.Equal(t, "new.student@example.com", user.Email)
	assert.Equal(t, model.RoleStudent, user.Role)
	assert.Equal(t, model.UserStatusPending, user.Status)
	assert.False(t, user.Approved)

	_, _, err = f.accounts.Login(ctx, "new.student@example.com", "secret123")
	assert.ErrorIs(t, err, apperr.ErrPendingApproval)

	pending, err := f.accounts.ListPendingStudents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, user.ID, pending[0].ID)

	approved, err := f.accounts.ApproveStudent(ctx, f.adminActor(), user.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, model.UserStatusActive, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, f.admin.ID, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, testNow, *approved.ApprovedAt)
	assert.Len(t, f.notes.For(user.ID), 1)

	_, err = f.accounts.ApproveStudent(ctx, f.adminActor(), user.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	logged, session, err := f.accounts.Login(ctx, "NEW.STUDENT@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotEmpty(t, session.Token)

	claims, err := f.provider.ParseToken(ctx, session.Token)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Logout(ctx, claims))
	_, err = f.provider.ParseToken(ctx, session.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestAccountService_RegisterValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
		code  apperr.Code
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "secret123", Name: "A"}, apperr.CodeInvalidInput},
		{"missing name", RegisterInput{Email: "a@example.com", Password: "secret123", Name: " "}, apperr.CodeInvalidInput},
		{"short password", RegisterInput{Email: "a@example.com", Password: "123", Name: "A"}, apperr.CodeInvalidInput},
		{"taken email", RegisterInput{Email: "student@example.com", Password: "secret123", Name: "A"}, apperr.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestAccountService_RejectStudent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, RegisterInput{Email: "r@example.com", Password: "secret123", Name: "R"})
	require.NoError(t, err)

	rejected, err := f.accounts.RejectStudent(ctx, f.adminActor(), user.ID, "Not enrolled")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusRejected, rejected.Status)
	assert.Equal(t, "Not enrolled", rejected.RejectionReason)

	_, _, err = f.accounts.Login(ctx, "r@example.com", "secret123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.accounts.RejectStudent(ctx, f.adminActor(), f.teacher.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAccountService_LoginWrongPassword(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, _, err := f.accounts.Login(ctx, "student@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, _, err = f.accounts.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestAccountService_PasswordReset(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.accounts.RequestPasswordReset(ctx, "nobody@example.com"))
	require.NoError(t, f.accounts.RequestPasswordReset(ctx, "student@example.com"))
	code := resetCode(t, f, f.student.ID)

	assert.ErrorIs(t, f.accounts.ResetPassword(ctx, code, "123"), apperr.ErrInvalidInput)
	require.NoError(t, f.accounts.ResetPassword(ctx, code, "brand-new-pass"))
	assert.ErrorIs(t, f.accounts.ResetPassword(ctx, code, "brand-new-pass"), apperr.ErrUnauthorized)

	_, _, err := f.accounts.Login(ctx, "student@example.com", "brand-new-pass")
	require.NoError(t, err)
	_, _, err = f.accounts.Login(ctx, "student@example.com", "secret123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestAccountService_UpdateProfileLinksTelegram(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	chatID := int64(9001)
	user, err := f.accounts.Register(ctx, RegisterInput{
		Email:          "linked@example.com",
		Password:       "secret123",
		Name:           "Linked",
		TelegramChatID: &chatID,
	})
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.Equal(t, chatID, *user.TelegramChatID)

	phone := "  +1 555 0100 "
	other := int64(-100200)
	updated, err := f.accounts.UpdateProfile(ctx, f.student.ID, model.ProfilePatch{Phone: &phone, TelegramChatID: &other})
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0100", updated.Phone)
	require.NotNil(t, updated.TelegramChatID)
	assert.Equal(t, other, *updated.TelegramChatID)

	// пустой патч ничего не меняет
	same, err := f.accounts.UpdateProfile(ctx, f.student.ID, model.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, other, *same.TelegramChatID)

	zero := int64(0)
	_, err = f.accounts.UpdateProfile(ctx, f.student.ID, model.ProfilePatch{TelegramChatID: &zero})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.accounts.UpdateProfile(ctx, 9999, model.ProfilePatch{Phone: &phone})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAccountService_AddTeacher(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	teacher, err := f.accounts.AddTeacher(ctx, f.adminActor(), TeacherInput{
		Email:      "prof@example.com",
		Password:   "secret123",
		Name:       "Prof. Ivanova",
		Department: "Physics",
		Subject:    "Optics",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, teacher.Role)
	assert.True(t, teacher.IsActive())
	require.NotNil(t, teacher.AddedBy)
	assert.Equal(t, f.admin.ID, *teacher.AddedBy)

	_, _, err = f.accounts.Login(ctx, "prof@example.com", "secret123")
	require.NoError(t, err)

	found, err := f.accounts.SearchTeachers(ctx, "optics")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, teacher.ID, found[0].ID)
}

func TestAccountService_AddTeacherWithTakenEmail(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.accounts.AddTeacher(ctx, f.adminActor(), TeacherInput{
		Email:    "student@example.com",
		Password: "whatever1",
		Name:     "Impostor",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// владелец email получает код и может сменить пароль
	code := resetCode(t, f, f.student.ID)
	require.NoError(t, f.accounts.ResetPassword(ctx, code, "another-pass"))

	student, err := f.accounts.Me(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, student.Role)
}

func TestAccountService_DeleteAndReactivateTeacher(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.accounts.DeleteTeacher(ctx, f.teacher.ID, false))
	_, _, err := f.accounts.Login(ctx, "teacher@example.com", "secret123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	teachers, err := f.accounts.ListUsers(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Empty(t, teachers)

	back, err := f.accounts.AddTeacher(ctx, f.adminActor(), TeacherInput{
		Email:    "teacher@example.com",
		Password: "secret123",
		Name:     "Returning",
	})
	require.NoError(t, err)
	assert.Equal(t, f.teacher.ID, back.ID)
	assert.True(t, back.IsActive())

	require.NoError(t, f.accounts.DeleteTeacher(ctx, f.teacher.ID, true))
	_, err = f.accounts.Me(ctx, f.teacher.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, f.accounts.DeleteTeacher(ctx, f.student.ID, true), apperr.ErrNotFound)
}

func TestAccountService_UpdateTeacher(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	name := "Dr. Petrov"
	subject := "Algebra"
	chatID := int64(42)
	updated, err := f.accounts.UpdateTeacher(ctx, f.teacher.ID, model.TeacherPatch{
		Name:           &name,
		Subject:        &subject,
		TelegramChatID: &chatID,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, subject, updated.Subject)
	assert.Equal(t, "Math", updated.Department)
	require.NotNil(t, updated.TelegramChatID)
	assert.Equal(t, chatID, *updated.TelegramChatID)

	empty := ""
	_, err = f.accounts.UpdateTeacher(ctx, f.teacher.ID, model.TeacherPatch{Name: &empty})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAccountService_EnsureAdmin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.accounts.EnsureAdmin(ctx, "", "", ""))
	require.NoError(t, f.accounts.EnsureAdmin(ctx, "root@example.com", "secret123", "Root"))
	require.NoError(t, f.accounts.EnsureAdmin(ctx, "root@example.com", "secret123", "Root"))
	assert.Error(t, f.accounts.EnsureAdmin(ctx, "student@example.com", "secret123", "Root"))

	admins, err := f.accounts.ListUsers(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	root, _, err := f.accounts.Login(ctx, "root@example.com", "secret123")
	require.NoError(t, err)
	assert.Nil(t, root.AddedBy)
}

func TestStatsService_System(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	a := approvedAppointment(t, f)
	_, err := f.messages.Send(ctx, f.studentActor(), a.ID, "hello")
	require.NoError(t, err)
	_, err = f.accounts.Register(ctx, RegisterInput{Email: "p@example.com", Password: "secret123", Name: "P"})
	require.NoError(t, err)

	stats, err := f.stats.System(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users.Students)
	assert.Equal(t, 1, stats.Users.PendingStudents)
	assert.Equal(t, 1, stats.Users.ApprovedStudents)
	assert.Equal(t, 1, stats.Users.Teachers)
	assert.Equal(t, 1, stats.Users.Admins)
	assert.Equal(t, 2, stats.Users.TotalUsers)
	assert.Equal(t, 1, stats.Slots.FullyBooked)
	assert.Equal(t, 1, stats.Appointments.Approved)
	assert.Equal(t, 1, stats.Messages.Total)
}

func TestReconciler_RepairsDriftedCounters(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 3)
	untouched := f.createSlot(t, "11:00", 1)

	_, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	// счётчик разошёлся с записями
	current := f.reload(t, slot.ID)
	ok, err := f.store.Slots().SwapCounters(ctx, slot.ID, current.Counters(),
		model.SlotCounters{CurrentBookings: 3, Status: model.SlotStatusFullyBooked})
	require.NoError(t, err)
	require.True(t, ok)

	repaired, err := f.reconciler.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	current = f.reload(t, slot.ID)
	assert.Equal(t, 1, current.CurrentBookings)
	assert.Equal(t, model.SlotStatusBooked, current.Status)
	assert.Equal(t, model.SlotStatusAvailable, f.reload(t, untouched.ID).Status)

	repaired, err = f.reconciler.Repair(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestReconciler_KeepsReopenedSlot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 2)
	other := f.addUser(t, "other@example.com", model.RoleStudent)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)
	_, err = f.book(other.ID, "10:00")
	require.NoError(t, err)
	_, err = f.status.Cancel(ctx, f.studentActor(), a.ID, "")
	require.NoError(t, err)

	repaired, err := f.reconciler.Repair(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
	assert.Equal(t, model.SlotStatusAvailable, f.reload(t, slot.ID).Status)
}
