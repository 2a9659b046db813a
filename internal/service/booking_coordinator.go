package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"go.uber.org/zap"
)

// BookingCoordinator резервирует место в слоте и создаёт запись одной транзакцией
type BookingCoordinator struct {
	tx           Transactor
	slots        SlotStore
	appointments AppointmentStore
	notifier     Notifier
	loc          *time.Location
	now          func() time.Time
	bookable     map[model.SlotStatus]bool
	logger       *zap.Logger
}

// NewBookingCoordinator создаёт координатор. allowPartial разрешает запись в частично
// заполненные слоты (статус booked), по умолчанию подходят только слоты available.
func NewBookingCoordinator(
	tx Transactor,
	slots SlotStore,
	appointments AppointmentStore,
	notifier Notifier,
	loc *time.Location,
	allowPartial bool,
	logger *zap.Logger,
) *BookingCoordinator {
	if loc == nil {
		loc = time.UTC
	}
	bookable := map[model.SlotStatus]bool{model.SlotStatusAvailable: true}
	if allowPartial {
		bookable[model.SlotStatusBooked] = true
	}
	return &BookingCoordinator{
		tx:           tx,
		slots:        slots,
		appointments: appointments,
		notifier:     notifierOrNop(notifier),
		loc:          loc,
		now:          time.Now,
		bookable:     bookable,
		logger:       logger,
	}
}

func (c *BookingCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

type BookingRequest struct {
	TeacherID int64
	StudentID int64
	Date      string
	Time      string
	Purpose   string
}

// Book находит слот учителя на дату и время, занимает в нём место и создаёт запись в статусе pending
func (c *BookingCoordinator) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	if _, err := model.ParseSlotTime(req.Date, req.Time, c.loc); err != nil {
		return nil, apperr.New(apperr.CodeInvalidInput, "date must be YYYY-MM-DD and time HH:MM")
	}

	var appointment *model.Appointment
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := c.reserve(ctx, req)
		if err != nil {
			return err
		}

		slotID := slot.ID
		appointment = &model.Appointment{
			TeacherID:      req.TeacherID,
			StudentID:      req.StudentID,
			Date:           req.Date,
			Time:           req.Time,
			Purpose:        strings.TrimSpace(req.Purpose),
			Status:         model.AppointmentStatusPending,
			ScheduleSlotID: &slotID,
		}
		if err := c.appointments.Create(ctx, appointment); err != nil {
			return apperr.Store("create appointment", err)
		}
		return nil
	})

	metrics.IncBookingAttempt(resultLabel(err))
	if err != nil {
		c.logger.Info("Booking rejected",
			zap.Int64("teacher_id", req.TeacherID),
			zap.Int64("student_id", req.StudentID),
			zap.String("date", req.Date),
			zap.String("time", req.Time),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("Appointment booked",
		zap.Int64("appointment_id", appointment.ID),
		zap.Int64("slot_id", *appointment.ScheduleSlotID),
		zap.Int64("teacher_id", req.TeacherID),
		zap.Int64("student_id", req.StudentID),
	)
	c.notifier.Dispatch(req.TeacherID, fmt.Sprintf("New appointment request for %s at %s", req.Date, req.Time))

	return appointment, nil
}

// BookSlot записывает студента в конкретный слот по его ID
func (c *BookingCoordinator) BookSlot(ctx context.Context, slotID, studentID int64, purpose string) (*model.Appointment, error) {
	slot, err := c.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, apperr.Store("get slot", err)
	}
	if slot == nil {
		return nil, apperr.New(apperr.CodeSlotUnavailable, "schedule slot not found")
	}
	return c.Book(ctx, BookingRequest{
		TeacherID: slot.TeacherID,
		StudentID: studentID,
		Date:      slot.Date,
		Time:      slot.Time,
		Purpose:   purpose,
	})
}

// reserve увеличивает счётчик записей через compare-and-swap, при проигранной гонке перечитывает слот
func (c *BookingCoordinator) reserve(ctx context.Context, req BookingRequest) (*model.ScheduleSlot, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		slot, err := c.slots.GetByKey(ctx, req.TeacherID, req.Date, req.Time)
		if err != nil {
			return nil, apperr.Store("find slot", err)
		}
		if slot == nil || !c.bookable[slot.Status] {
			return nil, apperr.New(apperr.CodeSlotUnavailable, "no available schedule slot found for the selected date and time")
		}
		if slot.IsFull() {
			return nil, apperr.New(apperr.CodeSlotFull, "this schedule slot is already fully booked")
		}
		if startsAt, err := slot.StartsAt(c.loc); err == nil && !startsAt.After(c.now()) {
			return nil, apperr.New(apperr.CodeSlotUnavailable, "this schedule slot has already started")
		}

		expected := slot.Counters()
		slot.CurrentBookings++
		slot.Recompute()

		ok, err := c.slots.SwapCounters(ctx, slot.ID, expected, slot.Counters())
		if err != nil {
			return nil, apperr.Store("reserve seat", err)
		}
		if ok {
			return slot, nil
		}
		metrics.IncBookingConflict()
	}

	return nil, apperr.New(apperr.CodeSlotUnavailable, "slot is in high demand, please try again")
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.CodeOf(err))
}
