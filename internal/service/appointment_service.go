package service

import (
	"context"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
)

// AppointmentService выборки записей с учётом роли пользователя
type AppointmentService struct {
	appointments AppointmentStore
	users        UserStore
}

func NewAppointmentService(appointments AppointmentStore, users UserStore) *AppointmentService {
	return &AppointmentService{appointments: appointments, users: users}
}

// scope администратор видит все записи, учитель и студент только свои
func scope(actor model.Actor) model.AppointmentFilter {
	switch actor.Role {
	case model.RoleTeacher:
		return model.AppointmentFilter{TeacherID: actor.UserID}
	case model.RoleStudent:
		return model.AppointmentFilter{StudentID: actor.UserID}
	}
	return model.AppointmentFilter{}
}

// List возвращает записи пользователя, новые первыми, с именами участников
func (s *AppointmentService) List(ctx context.Context, actor model.Actor) ([]*model.AppointmentView, error) {
	appointments, err := s.appointments.List(ctx, scope(actor))
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}
	return s.enrich(ctx, actor, appointments)
}

// Get возвращает запись, если пользователь её участник или администратор
func (s *AppointmentService) Get(ctx context.Context, actor model.Actor, id int64) (*model.AppointmentView, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, actor, []*model.Appointment{a})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *AppointmentService) load(ctx context.Context, actor model.Actor, id int64) (*model.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("get appointment", err)
	}
	if a == nil || (!actor.IsAdmin() && !a.IsParticipant(actor.UserID)) {
		return nil, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	return a, nil
}

// Stats считает записи пользователя по статусам
func (s *AppointmentService) Stats(ctx context.Context, actor model.Actor) (*model.AppointmentStats, error) {
	appointments, err := s.appointments.List(ctx, scope(actor))
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}

	stats := &model.AppointmentStats{}
	for _, a := range appointments {
		stats.Add(a.Status)
	}
	return stats, nil
}

func (s *AppointmentService) enrich(ctx context.Context, actor model.Actor, appointments []*model.Appointment) ([]*model.AppointmentView, error) {
	ids := make([]int64, 0, len(appointments)*2)
	seen := make(map[int64]bool)
	for _, a := range appointments {
		for _, id := range []int64{a.StudentID, a.TeacherID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Store("load participants", err)
	}

	views := make([]*model.AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		view := &model.AppointmentView{Appointment: *a}
		if u := users[a.StudentID]; u != nil {
			view.StudentName = u.Name
		}
		if u := users[a.TeacherID]; u != nil {
			view.TeacherName = u.Name
		}
		view.Name = view.DisplayName(actor.Role)
		views = append(views, view)
	}
	return views, nil
}
