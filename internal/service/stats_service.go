package service

import (
	"context"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

// StatsService собирает общую статистику системы для администратора
type StatsService struct {
	accounts     *AccountService
	slots        *SlotRegistry
	appointments *AppointmentService
	messages     *MessageService
}

func NewStatsService(accounts *AccountService, slots *SlotRegistry, appointments *AppointmentService, messages *MessageService) *StatsService {
	return &StatsService{accounts: accounts, slots: slots, appointments: appointments, messages: messages}
}

func (s *StatsService) System(ctx context.Context) (*model.SystemStats, error) {
	users, err := s.accounts.UserStats(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.Stats(ctx, 0)
	if err != nil {
		return nil, err
	}
	appointments, err := s.appointments.Stats(ctx, model.Actor{Role: model.RoleAdmin})
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}

	return &model.SystemStats{
		Users:        *users,
		Slots:        *slots,
		Appointments: *appointments,
		Messages:     *messages,
	}, nil
}
