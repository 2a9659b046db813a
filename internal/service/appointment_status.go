package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"go.uber.org/zap"
)

const defaultRejectReason = "Rejected by teacher"

// AppointmentStatusMachine переводит записи по таблице переходов и возвращает место в слот при отмене
type AppointmentStatusMachine struct {
	tx           Transactor
	slots        SlotStore
	appointments AppointmentStore
	notifier     Notifier
	logger       *zap.Logger
}

func NewAppointmentStatusMachine(
	tx Transactor,
	slots SlotStore,
	appointments AppointmentStore,
	notifier Notifier,
	logger *zap.Logger,
) *AppointmentStatusMachine {
	return &AppointmentStatusMachine{
		tx:           tx,
		slots:        slots,
		appointments: appointments,
		notifier:     notifierOrNop(notifier),
		logger:       logger,
	}
}

// SetStatus меняет статус записи. Переход в cancelled освобождает место в связанном слоте
// в той же транзакции.
func (m *AppointmentStatusMachine) SetStatus(
	ctx context.Context,
	actor model.Actor,
	id int64,
	to model.AppointmentStatus,
	reason string,
) (*model.Appointment, error) {
	if !to.Valid() {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "unknown appointment status %q", to)
	}
	reason = strings.TrimSpace(reason)

	var (
		updated *model.Appointment
		from    model.AppointmentStatus
	)
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := m.appointments.GetByID(ctx, id)
		if err != nil {
			return apperr.Store("get appointment", err)
		}
		if a == nil {
			return apperr.New(apperr.CodeNotFound, "appointment not found")
		}
		if err := authorizeTransition(actor, a, to); err != nil {
			return err
		}
		if !model.CanTransition(a.Status, to) {
			return apperr.Newf(apperr.CodeInvalidTransition, "cannot change appointment from %s to %s", a.Status, to)
		}

		ok, err := m.appointments.UpdateStatus(ctx, id, a.Status, to, reason)
		if err != nil {
			return apperr.Store("update appointment status", err)
		}
		if !ok {
			return apperr.New(apperr.CodeInvalidState, "appointment was changed by someone else, reload and try again")
		}

		from = a.Status
		a.Status = to
		a.Reason = reason

		if to == model.AppointmentStatusCancelled && a.ScheduleSlotID != nil {
			if err := m.releaseSeat(ctx, *a.ScheduleSlotID); err != nil {
				return err
			}
		}

		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncAppointmentTransition(string(from), string(to))
	m.logger.Info("Appointment status changed",
		zap.Int64("appointment_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actor.UserID),
	)
	m.notifyParticipants(actor, updated)

	return updated, nil
}

// releaseSeat уменьшает счётчик слота (не ниже нуля) и пересчитывает статус.
// Заполненный слот, в котором появилось место, снова становится available.
func (m *AppointmentStatusMachine) releaseSeat(ctx context.Context, slotID int64) error {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		slot, err := m.slots.GetByID(ctx, slotID)
		if err != nil {
			return apperr.Store("get slot", err)
		}
		if slot == nil {
			m.logger.Warn("Linked slot no longer exists", zap.Int64("slot_id", slotID))
			return nil
		}

		expected := slot.Counters()
		wasFull := slot.Status == model.SlotStatusFullyBooked

		if slot.CurrentBookings > 0 {
			slot.CurrentBookings--
		}
		slot.Recompute()
		if wasFull && slot.Remaining() > 0 {
			slot.Status = model.SlotStatusAvailable
		}

		if slot.Counters() == expected {
			return nil
		}

		ok, err := m.slots.SwapCounters(ctx, slotID, expected, slot.Counters())
		if err != nil {
			return apperr.Store("release seat", err)
		}
		if ok {
			return nil
		}
		metrics.IncBookingConflict()
	}

	return apperr.New(apperr.CodeConflict, "slot is being modified concurrently, try again")
}

func authorizeTransition(actor model.Actor, a *model.Appointment, to model.AppointmentStatus) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.Role == model.RoleTeacher && actor.UserID == a.TeacherID:
		return nil
	case actor.Role == model.RoleStudent && actor.UserID == a.StudentID:
		if to == model.AppointmentStatusCancelled {
			return nil
		}
		return apperr.New(apperr.CodeForbidden, "students can only cancel their appointments")
	}
	return apperr.New(apperr.CodeForbidden, "not a participant of this appointment")
}

func (m *AppointmentStatusMachine) notifyParticipants(actor model.Actor, a *model.Appointment) {
	text := fmt.Sprintf("Appointment on %s at %s is now %s", a.Date, a.Time, a.Status)
	if a.Reason != "" {
		text += ": " + a.Reason
	}
	if actor.UserID != a.StudentID {
		m.notifier.Dispatch(a.StudentID, text)
	}
	if actor.UserID != a.TeacherID {
		m.notifier.Dispatch(a.TeacherID, text)
	}
}

func (m *AppointmentStatusMachine) Approve(ctx context.Context, actor model.Actor, id int64) (*model.Appointment, error) {
	return m.SetStatus(ctx, actor, id, model.AppointmentStatusApproved, "")
}

// Reject отклоняет запись: она переходит в cancelled с причиной
func (m *AppointmentStatusMachine) Reject(ctx context.Context, actor model.Actor, id int64, reason string) (*model.Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		reason = defaultRejectReason
	}
	return m.SetStatus(ctx, actor, id, model.AppointmentStatusCancelled, reason)
}

func (m *AppointmentStatusMachine) Cancel(ctx context.Context, actor model.Actor, id int64, reason string) (*model.Appointment, error) {
	return m.SetStatus(ctx, actor, id, model.AppointmentStatusCancelled, reason)
}

func (m *AppointmentStatusMachine) Complete(ctx context.Context, actor model.Actor, id int64) (*model.Appointment, error) {
	return m.SetStatus(ctx, actor, id, model.AppointmentStatusCompleted, "")
}
