package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(teacherID int64) *model.ScheduleSlot {
	return &model.ScheduleSlot{
		TeacherID:   teacherID,
		Date:        "2030-01-10",
		Time:        "10:00",
		Duration:    60,
		MaxStudents: 2,
		Status:      model.SlotStatusAvailable,
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	slots := store.Slots()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, slots.Create(ctx, newSlot(1)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := slots.ListByTeacher(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	slots := store.Slots()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			return slots.Create(ctx, newSlot(1))
		})
	})
	require.NoError(t, err)

	list, err := slots.ListByTeacher(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSlotRepository_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	slots := NewStore().Slots()

	require.NoError(t, slots.Create(ctx, newSlot(1)))
	err := slots.Create(ctx, newSlot(1))
	assert.ErrorIs(t, err, apperr.ErrDuplicateSlot)

	require.NoError(t, slots.Create(ctx, newSlot(2)))
}

func TestSlotRepository_SwapCounters(t *testing.T) {
	ctx := context.Background()
	slots := NewStore().Slots()
	slot := newSlot(1)
	require.NoError(t, slots.Create(ctx, slot))

	next := model.SlotCounters{CurrentBookings: 1, Status: model.SlotStatusBooked}
	ok, err := slots.SwapCounters(ctx, slot.ID, slot.Counters(), next)
	require.NoError(t, err)
	assert.True(t, ok)

	// старое ожидаемое значение больше не совпадает
	ok, err = slots.SwapCounters(ctx, slot.ID, slot.Counters(), next)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := slots.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentBookings)
	assert.Equal(t, model.SlotStatusBooked, stored.Status)
}

func TestSlotRepository_ListAvailableByDepartment(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	physics := &model.User{Email: "p@uni.test", Name: "P", Role: model.RoleTeacher, Department: "Physics", Status: model.UserStatusActive}
	maths := &model.User{Email: "m@uni.test", Name: "M", Role: model.RoleTeacher, Department: "Maths", Status: model.UserStatusActive}
	require.NoError(t, store.Users().Create(ctx, physics))
	require.NoError(t, store.Users().Create(ctx, maths))
	require.NoError(t, store.Slots().Create(ctx, newSlot(physics.ID)))
	require.NoError(t, store.Slots().Create(ctx, newSlot(maths.ID)))

	list, err := store.Slots().ListAvailable(ctx, model.SlotFilter{Department: "physics"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, physics.ID, list[0].TeacherID)
}

func TestAppointmentRepository_UpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	appointments := NewStore().Appointments()

	a := &model.Appointment{TeacherID: 1, StudentID: 2, Status: model.AppointmentStatusPending}
	require.NoError(t, appointments.Create(ctx, a))

	ok, err := appointments.UpdateStatus(ctx, a.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled, "busy")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = appointments.UpdateStatus(ctx, a.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled, "busy")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := appointments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)
	assert.Equal(t, "busy", stored.Reason)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	teacher := &model.User{Email: "t@uni.test", Name: "T", Role: model.RoleTeacher}
	require.NoError(t, store.Users().Create(ctx, teacher))
	slot := newSlot(teacher.ID)
	require.NoError(t, store.Slots().Create(ctx, slot))
	a := &model.Appointment{TeacherID: teacher.ID, StudentID: 99, ScheduleSlotID: &slot.ID, Status: model.AppointmentStatusPending}
	require.NoError(t, store.Appointments().Create(ctx, a))

	deleted, err := store.Users().Delete(ctx, teacher.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	gotSlot, err := store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Nil(t, gotSlot)

	gotAppt, err := store.Appointments().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gotAppt)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("store down")

	store.FailOn("slots.create", boom)
	assert.ErrorIs(t, store.Slots().Create(ctx, newSlot(1)), boom)

	store.FailOn("slots.create", nil)
	assert.NoError(t, store.Slots().Create(ctx, newSlot(1)))
}
