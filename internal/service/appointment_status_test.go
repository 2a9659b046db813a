package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentStatusMachine_CancelReopensSlot(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusFullyBooked, f.reload(t, slot.ID).Status)

	cancelled, err := f.status.Cancel(ctx, f.studentActor(), a.ID, "Can't make it")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "Can't make it", cancelled.Reason)

	slot = f.reload(t, slot.ID)
	assert.Equal(t, 0, slot.CurrentBookings)
	assert.Equal(t, model.SlotStatusAvailable, slot.Status)

	// место снова можно занять
	_, err = f.book(f.student.ID, "10:00")
	require.NoError(t, err)
}

func TestAppointmentStatusMachine_CancelFromFullSlotWithSeatsLeft(t *testing.T) {
	f := newFixture(t, true)
	slot := f.createSlot(t, "10:00", 2)
	other := f.addUser(t, "other@example.com", model.RoleStudent)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)
	_, err = f.book(other.ID, "10:00")
	require.NoError(t, err)

	_, err = f.status.Cancel(context.Background(), f.teacherActor(), a.ID, "")
	require.NoError(t, err)

	slot = f.reload(t, slot.ID)
	assert.Equal(t, 1, slot.CurrentBookings)
	assert.Equal(t, model.SlotStatusAvailable, slot.Status)
}

func TestAppointmentStatusMachine_Transitions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	_, err = f.status.Complete(ctx, f.teacherActor(), a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	approved, err := f.status.Approve(ctx, f.teacherActor(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusApproved, approved.Status)

	completed, err := f.status.Complete(ctx, f.teacherActor(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)

	_, err = f.status.Cancel(ctx, f.teacherActor(), a.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.status.SetStatus(ctx, f.teacherActor(), a.ID, "archived", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	// завершённая запись продолжает держать место
	assert.Equal(t, 1, f.reload(t, slot.ID).CurrentBookings)
}

func TestAppointmentStatusMachine_Authorization(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.createSlot(t, "10:00", 1)
	stranger := f.addUser(t, "stranger@example.com", model.RoleTeacher)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	_, err = f.status.Approve(ctx, f.studentActor(), a.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.status.Approve(ctx, model.Actor{UserID: stranger.ID, Role: model.RoleTeacher}, a.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.status.Approve(ctx, f.adminActor(), a.ID)
	require.NoError(t, err)

	_, err = f.status.Approve(ctx, f.teacherActor(), 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAppointmentStatusMachine_RejectDefaultsReason(t *testing.T) {
	f := newFixture(t, false)
	slot := f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	rejected, err := f.status.Reject(context.Background(), f.teacherActor(), a.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, rejected.Status)
	assert.Equal(t, defaultRejectReason, rejected.Reason)
	assert.Equal(t, 0, f.reload(t, slot.ID).CurrentBookings)

	notes := f.notes.For(f.student.ID)
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[len(notes)-1], defaultRejectReason)
}

func TestAppointmentStatusMachine_CancelWithDeletedSlot(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	// слот удалён в обход реестра
	ok, err := f.store.Slots().Delete(ctx, slot.ID, f.reload(t, slot.ID).Counters())
	require.NoError(t, err)
	require.True(t, ok)

	cancelled, err := f.status.Cancel(ctx, f.studentActor(), a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
}

func TestAppointmentStatusMachine_RollsBackWhenSlotUpdateFails(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := f.createSlot(t, "10:00", 1)

	a, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)

	f.store.FailOn("slots.swap", assert.AnError)
	_, err = f.status.Cancel(ctx, f.studentActor(), a.ID, "")
	require.Error(t, err)
	f.store.FailOn("slots.swap", nil)

	stored, err := f.store.Appointments().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
	assert.Equal(t, 1, f.reload(t, slot.ID).CurrentBookings)
}

func TestAppointmentService_ListScopesByRole(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.createSlot(t, "10:00", 1)
	f.createSlot(t, "11:00", 1)
	other := f.addUser(t, "other@example.com", model.RoleStudent)

	_, err := f.book(f.student.ID, "10:00")
	require.NoError(t, err)
	_, err = f.book(other.ID, "11:00")
	require.NoError(t, err)

	mine, err := f.appointments.List(ctx, f.studentActor())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.student.Name, mine[0].StudentName)
	assert.Equal(t, f.teacher.Name, mine[0].TeacherName)
	assert.Equal(t, f.teacher.Name+" - Thesis review", mine[0].Name)

	teacherView, err := f.appointments.List(ctx, f.teacherActor())
	require.NoError(t, err)
	assert.Len(t, teacherView, 2)

	_, err = f.appointments.Get(ctx, model.Actor{UserID: other.ID, Role: model.RoleStudent}, mine[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stats, err := f.appointments.Stats(ctx, f.adminActor())
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStats{Total: 2, Pending: 2}, *stats)
}
