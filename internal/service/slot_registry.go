package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"go.uber.org/zap"
)

// maxSwapAttempts ограничивает число повторов conditional update при гонке за слот
const maxSwapAttempts = 5

// SlotRegistry управляет жизненным циклом слотов расписания
type SlotRegistry struct {
	slots  SlotStore
	users  UserStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewSlotRegistry(slots SlotStore, users UserStore, loc *time.Location, logger *zap.Logger) *SlotRegistry {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotRegistry{
		slots:  slots,
		users:  users,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock подменяет текущее время, используется в тестах
func (r *SlotRegistry) SetClock(now func() time.Time) {
	r.now = now
}

type CreateSlotInput struct {
	TeacherID   int64
	Date        string
	Time        string
	Duration    int
	MaxStudents int
	Purpose     string
}

// CreateSlot создаёт слот. Учитель создаёт только свои слоты, администратор от имени любого учителя.
func (r *SlotRegistry) CreateSlot(ctx context.Context, actor model.Actor, in CreateSlotInput) (*model.ScheduleSlot, error) {
	teacherID, err := r.resolveTeacher(ctx, actor, in.TeacherID)
	if err != nil {
		return nil, err
	}

	if in.Duration <= 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "duration must be a positive number of minutes")
	}
	if in.MaxStudents <= 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "max students must be positive")
	}
	if err := r.checkFuture(in.Date, in.Time); err != nil {
		return nil, err
	}

	// Проверяем что на это время у учителя ещё нет слота
	existing, err := r.slots.GetByKey(ctx, teacherID, in.Date, in.Time)
	if err != nil {
		return nil, apperr.Store("check existing slot", err)
	}
	if existing != nil {
		return nil, apperr.New(apperr.CodeDuplicateSlot, "a schedule slot already exists for this date and time")
	}

	slot := &model.ScheduleSlot{
		TeacherID:       teacherID,
		Date:            in.Date,
		Time:            in.Time,
		Duration:        in.Duration,
		MaxStudents:     in.MaxStudents,
		CurrentBookings: 0,
		Status:          model.SlotStatusAvailable,
		Purpose:         strings.TrimSpace(in.Purpose),
	}

	if err := r.slots.Create(ctx, slot); err != nil {
		return nil, apperr.Store("create slot", err)
	}

	r.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", teacherID),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time),
		zap.Int("max_students", slot.MaxStudents),
	)

	return slot, nil
}

func (r *SlotRegistry) resolveTeacher(ctx context.Context, actor model.Actor, requested int64) (int64, error) {
	switch actor.Role {
	case model.RoleTeacher:
		if requested != 0 && requested != actor.UserID {
			return 0, apperr.New(apperr.CodeForbidden, "teachers can only manage their own slots")
		}
		return actor.UserID, nil
	case model.RoleAdmin:
		if requested == 0 {
			return 0, apperr.New(apperr.CodeInvalidInput, "teacher id is required")
		}
		teacher, err := r.users.GetByID(ctx, requested)
		if err != nil {
			return 0, apperr.Store("get teacher", err)
		}
		if teacher == nil || teacher.Role != model.RoleTeacher {
			return 0, apperr.New(apperr.CodeNotFound, "teacher not found")
		}
		return teacher.ID, nil
	default:
		return 0, apperr.New(apperr.CodeForbidden, "only teachers can publish slots")
	}
}

// checkFuture проверяет формат даты и времени и что слот строго в будущем
func (r *SlotRegistry) checkFuture(date, clock string) error {
	startsAt, err := model.ParseSlotTime(date, clock, r.loc)
	if err != nil {
		return apperr.New(apperr.CodeInvalidInput, "date must be YYYY-MM-DD and time HH:MM")
	}
	if !startsAt.After(r.now()) {
		return apperr.New(apperr.CodeInvalidTime, "schedule slot must be in the future")
	}
	return nil
}

// GetSlot получает слот по ID
func (r *SlotRegistry) GetSlot(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	slot, err := r.slots.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("get slot", err)
	}
	if slot == nil {
		return nil, apperr.New(apperr.CodeNotFound, "slot not found")
	}
	return slot, nil
}

// UpdateSlot применяет частичное изменение слота. Статус после изменения пересчитывается.
func (r *SlotRegistry) UpdateSlot(ctx context.Context, actor model.Actor, id int64, patch model.SlotPatch) (*model.ScheduleSlot, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		slot, err := r.GetSlot(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := authorizeSlot(actor, slot); err != nil {
			return nil, err
		}
		if slot.Status == model.SlotStatusCompleted {
			return nil, apperr.New(apperr.CodeInvalidState, "completed slots cannot be edited")
		}

		expected := slot.Counters()
		if err := r.applyPatch(ctx, slot, patch); err != nil {
			return nil, err
		}

		ok, err := r.slots.Update(ctx, slot, expected)
		if err != nil {
			return nil, apperr.Store("update slot", err)
		}
		if ok {
			r.logger.Info("Slot updated",
				zap.Int64("slot_id", slot.ID),
				zap.String("status", string(slot.Status)),
			)
			return slot, nil
		}
		// слот изменился между чтением и записью, перечитываем
	}

	return nil, apperr.New(apperr.CodeConflict, "slot is being modified concurrently, try again")
}

func (r *SlotRegistry) applyPatch(ctx context.Context, slot *model.ScheduleSlot, patch model.SlotPatch) error {
	keyChanged := false
	if patch.Date != nil && *patch.Date != slot.Date {
		slot.Date = *patch.Date
		keyChanged = true
	}
	if patch.Time != nil && *patch.Time != slot.Time {
		slot.Time = *patch.Time
		keyChanged = true
	}
	if keyChanged {
		if err := r.checkFuture(slot.Date, slot.Time); err != nil {
			return err
		}
		other, err := r.slots.GetByKey(ctx, slot.TeacherID, slot.Date, slot.Time)
		if err != nil {
			return apperr.Store("check existing slot", err)
		}
		if other != nil && other.ID != slot.ID {
			return apperr.New(apperr.CodeDuplicateSlot, "a schedule slot already exists for this date and time")
		}
	}

	if patch.Duration != nil {
		if *patch.Duration <= 0 {
			return apperr.New(apperr.CodeInvalidInput, "duration must be a positive number of minutes")
		}
		slot.Duration = *patch.Duration
	}
	if patch.MaxStudents != nil {
		if *patch.MaxStudents <= 0 {
			return apperr.New(apperr.CodeInvalidInput, "max students must be positive")
		}
		if *patch.MaxStudents < slot.CurrentBookings {
			return apperr.Newf(apperr.CodeInvalidInput, "slot already has %d bookings", slot.CurrentBookings)
		}
		slot.MaxStudents = *patch.MaxStudents
	}
	if patch.Purpose != nil {
		slot.Purpose = strings.TrimSpace(*patch.Purpose)
	}

	if patch.Status != nil {
		switch *patch.Status {
		case model.SlotStatusCancelled, model.SlotStatusCompleted:
			slot.Status = *patch.Status
		case model.SlotStatusAvailable:
			// возврат отменённого слота в работу, дальше статус выводится из счётчика
			slot.Status = model.SlotStatusAvailable
		default:
			return apperr.Newf(apperr.CodeInvalidInput, "status %q cannot be set manually", *patch.Status)
		}
	}

	slot.Recompute()
	return nil
}

// DeleteSlot удаляет слот без записей
func (r *SlotRegistry) DeleteSlot(ctx context.Context, actor model.Actor, id int64) error {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		slot, err := r.GetSlot(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeSlot(actor, slot); err != nil {
			return err
		}
		if slot.Status == model.SlotStatusCompleted {
			return apperr.New(apperr.CodeInvalidState, "completed slots cannot be deleted")
		}
		if slot.CurrentBookings > 0 {
			return apperr.Newf(apperr.CodeHasBookings, "slot has %d active bookings", slot.CurrentBookings)
		}

		ok, err := r.slots.Delete(ctx, id, slot.Counters())
		if err != nil {
			return apperr.Store("delete slot", err)
		}
		if ok {
			r.logger.Info("Slot deleted", zap.Int64("slot_id", id), zap.Int64("teacher_id", slot.TeacherID))
			return nil
		}
	}

	return apperr.New(apperr.CodeConflict, "slot is being modified concurrently, try again")
}

// ListTeacherSlots возвращает слоты учителя по дате и времени, пустой статус означает все
func (r *SlotRegistry) ListTeacherSlots(ctx context.Context, teacherID int64, status model.SlotStatus) ([]*model.ScheduleSlot, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown slot status %q", status)
	}
	slots, err := r.slots.ListByTeacher(ctx, teacherID, status)
	if err != nil {
		return nil, apperr.Store("list teacher slots", err)
	}
	return slots, nil
}

// ListAvailable возвращает слоты со статусом available
func (r *SlotRegistry) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error) {
	slots, err := r.slots.ListAvailable(ctx, filter)
	if err != nil {
		return nil, apperr.Store("list available slots", err)
	}
	return slots, nil
}

// Stats считает слоты учителя по статусам, teacherID = 0 означает все слоты
func (r *SlotRegistry) Stats(ctx context.Context, teacherID int64) (*model.SlotStats, error) {
	counts, err := r.slots.CountByStatus(ctx, teacherID)
	if err != nil {
		return nil, apperr.Store("count slots", err)
	}

	stats := &model.SlotStats{}
	for status, n := range counts {
		stats.Add(status, n)
	}
	return stats, nil
}

func authorizeSlot(actor model.Actor, slot *model.ScheduleSlot) error {
	if actor.IsAdmin() || (actor.Role == model.RoleTeacher && actor.UserID == slot.TeacherID) {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "only the slot owner can change it")
}
