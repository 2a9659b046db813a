package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
)

type SlotRepository struct {
	s *Store
}

func (r *SlotRepository) keyTaken(slot *model.ScheduleSlot) bool {
	for id, other := range r.s.d.slots {
		if id != slot.ID && other.TeacherID == slot.TeacherID && other.Date == slot.Date && other.Time == slot.Time {
			return true
		}
	}
	return false
}

func (r *SlotRepository) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.create"); err != nil {
		return err
	}
	if r.keyTaken(slot) {
		return apperr.New(apperr.CodeDuplicateSlot, "a slot already exists for this date and time")
	}

	slot.ID = r.s.nextID()
	slot.CreatedAt = r.s.now()
	slot.UpdatedAt = slot.CreatedAt
	r.s.d.slots[slot.ID] = *slot
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.get"); err != nil {
		return nil, err
	}
	slot, ok := r.s.d.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r *SlotRepository) GetByKey(ctx context.Context, teacherID int64, date, clock string) (*model.ScheduleSlot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.get"); err != nil {
		return nil, err
	}
	for _, slot := range r.s.d.slots {
		if slot.TeacherID == teacherID && slot.Date == date && slot.Time == clock {
			return &slot, nil
		}
	}
	return nil, nil
}

func (r *SlotRepository) Update(ctx context.Context, slot *model.ScheduleSlot, expected model.SlotCounters) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.update"); err != nil {
		return false, err
	}
	current, ok := r.s.d.slots[slot.ID]
	if !ok || current.CurrentBookings != expected.CurrentBookings || current.Status != expected.Status {
		return false, nil
	}
	if r.keyTaken(slot) {
		return false, apperr.New(apperr.CodeDuplicateSlot, "a slot already exists for this date and time")
	}

	slot.TeacherID = current.TeacherID
	slot.CurrentBookings = current.CurrentBookings
	slot.CreatedAt = current.CreatedAt
	slot.UpdatedAt = r.s.now()
	r.s.d.slots[slot.ID] = *slot
	return true, nil
}

func (r *SlotRepository) SwapCounters(ctx context.Context, id int64, expected, next model.SlotCounters) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.swap"); err != nil {
		return false, err
	}
	slot, ok := r.s.d.slots[id]
	if !ok || slot.CurrentBookings != expected.CurrentBookings || slot.Status != expected.Status {
		return false, nil
	}

	slot.CurrentBookings = next.CurrentBookings
	slot.Status = next.Status
	slot.UpdatedAt = r.s.now()
	r.s.d.slots[id] = slot
	return true, nil
}

func (r *SlotRepository) Delete(ctx context.Context, id int64, expected model.SlotCounters) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.delete"); err != nil {
		return false, err
	}
	slot, ok := r.s.d.slots[id]
	if !ok || slot.CurrentBookings != expected.CurrentBookings || slot.Status != expected.Status {
		return false, nil
	}
	delete(r.s.d.slots, id)
	// как ON DELETE SET NULL в схеме
	for aid, a := range r.s.d.appointments {
		if a.ScheduleSlotID != nil && *a.ScheduleSlotID == id {
			a.ScheduleSlotID = nil
			r.s.d.appointments[aid] = a
		}
	}
	return true, nil
}

func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID int64, status model.SlotStatus) ([]*model.ScheduleSlot, error) {
	return r.list(ctx, func(slot *model.ScheduleSlot) bool {
		return slot.TeacherID == teacherID && (status == "" || slot.Status == status)
	})
}

func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error) {
	return r.list(ctx, func(slot *model.ScheduleSlot) bool {
		if slot.Status != model.SlotStatusAvailable {
			return false
		}
		if filter.Date != "" && slot.Date != filter.Date {
			return false
		}
		if filter.TeacherID != 0 && slot.TeacherID != filter.TeacherID {
			return false
		}
		if filter.Department != "" {
			teacher, ok := r.s.d.users[slot.TeacherID]
			if !ok || !strings.EqualFold(teacher.Department, filter.Department) {
				return false
			}
		}
		return true
	})
}

func (r *SlotRepository) ListOpen(ctx context.Context) ([]*model.ScheduleSlot, error) {
	slots, err := r.list(ctx, func(slot *model.ScheduleSlot) bool { return !slot.Status.IsManual() })
	if err != nil {
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (r *SlotRepository) CountByStatus(ctx context.Context, teacherID int64) (map[model.SlotStatus]int, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.list"); err != nil {
		return nil, err
	}
	counts := make(map[model.SlotStatus]int)
	for _, slot := range r.s.d.slots {
		if teacherID == 0 || slot.TeacherID == teacherID {
			counts[slot.Status]++
		}
	}
	return counts, nil
}

func (r *SlotRepository) list(ctx context.Context, match func(*model.ScheduleSlot) bool) ([]*model.ScheduleSlot, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("slots.list"); err != nil {
		return nil, err
	}

	var slots []*model.ScheduleSlot
	for _, slot := range r.s.d.slots {
		slot := slot
		if match(&slot) {
			slots = append(slots, &slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		if slots[i].Time != slots[j].Time {
			return slots[i].Time < slots[j].Time
		}
		return slots[i].ID < slots[j].ID
	})
	return slots, nil
}
