package memory

import (
	"context"
	"sort"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

type AppointmentRepository struct {
	s *Store
}

func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("appointments.create"); err != nil {
		return err
	}

	a.ID = r.s.nextID()
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	if a.ScheduleSlotID != nil {
		id := *a.ScheduleSlotID
		stored.ScheduleSlotID = &id
	}
	r.s.d.appointments[a.ID] = stored
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("appointments.get"); err != nil {
		return nil, err
	}
	a, ok := r.s.d.appointments[id]
	if !ok {
		return nil, nil
	}
	return copyAppointment(a), nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus, reason string) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("appointments.update"); err != nil {
		return false, err
	}
	a, ok := r.s.d.appointments[id]
	if !ok || a.Status != from {
		return false, nil
	}

	a.Status = to
	a.Reason = reason
	a.UpdatedAt = r.s.now()
	r.s.d.appointments[id] = a
	return true, nil
}

func (r *AppointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("appointments.list"); err != nil {
		return nil, err
	}

	var result []*model.Appointment
	for _, a := range r.s.d.appointments {
		if filter.TeacherID != 0 && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != 0 && a.StudentID != filter.StudentID {
			continue
		}
		result = append(result, copyAppointment(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *AppointmentRepository) CountSeatsBySlot(ctx context.Context) (map[int64]int, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("appointments.list"); err != nil {
		return nil, err
	}

	seats := make(map[int64]int)
	for _, a := range r.s.d.appointments {
		if a.ScheduleSlotID != nil && a.Status.HoldsSeat() {
			seats[*a.ScheduleSlotID]++
		}
	}
	return seats, nil
}

func copyAppointment(a model.Appointment) *model.Appointment {
	if a.ScheduleSlotID != nil {
		id := *a.ScheduleSlotID
		a.ScheduleSlotID = &id
	}
	return &a
}
