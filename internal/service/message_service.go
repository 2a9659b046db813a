package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/metrics"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/pubsub"
	"go.uber.org/zap"
)

const maxMessageLength = 4000

// MessageService переписка студента и учителя по подтверждённой записи
type MessageService struct {
	messages     MessageStore
	appointments AppointmentStore
	broker       pubsub.Broker
	loc          *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

func NewMessageService(
	messages MessageStore,
	appointments AppointmentStore,
	broker pubsub.Broker,
	loc *time.Location,
	logger *zap.Logger,
) *MessageService {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageService{
		messages:     messages,
		appointments: appointments,
		broker:       broker,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *MessageService) SetClock(now func() time.Time) {
	s.now = now
}

// participant проверяет что пользователь участник записи, администратор может только читать
func (s *MessageService) participant(ctx context.Context, actor model.Actor, appointmentID int64, write bool) (*model.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Store("get appointment", err)
	}
	if a == nil {
		return nil, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if a.IsParticipant(actor.UserID) || (!write && actor.IsAdmin()) {
		return a, nil
	}
	return nil, apperr.New(apperr.CodeForbidden, "not a participant of this appointment")
}

// Send сохраняет сообщение и рассылает его подписчикам. Писать можно только по approved записи.
func (s *MessageService) Send(ctx context.Context, actor model.Actor, appointmentID int64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "message must not be empty")
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "message must be at most %d characters", maxMessageLength)
	}

	a, err := s.participant(ctx, actor, appointmentID, true)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AppointmentStatusApproved {
		return nil, apperr.New(apperr.CodeInvalidState, "messages can only be sent for approved appointments")
	}

	senderType := model.SenderStudent
	if actor.UserID == a.TeacherID {
		senderType = model.SenderTeacher
	}

	msg := &model.Message{
		AppointmentID: appointmentID,
		SenderID:      actor.UserID,
		SenderType:    senderType,
		Body:          text,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperr.Store("create message", err)
	}

	metrics.IncMessageSent(string(senderType))

	// сообщение уже сохранено, подписчики догонят его при следующей загрузке истории
	if err := s.broker.Publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to publish message",
			zap.Int64("message_id", msg.ID),
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
	}

	return msg, nil
}

// ListForAppointment возвращает переписку в хронологическом порядке
func (s *MessageService) ListForAppointment(ctx context.Context, actor model.Actor, appointmentID int64) ([]*model.Message, error) {
	if _, err := s.participant(ctx, actor, appointmentID, false); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return messages, nil
}

// ListForUser возвращает сообщения по всем записям пользователя, новые первыми
func (s *MessageService) ListForUser(ctx context.Context, actor model.Actor) ([]*model.Message, error) {
	appointments, err := s.appointments.List(ctx, scope(actor))
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}

	ids := make([]int64, 0, len(appointments))
	for _, a := range appointments {
		ids = append(ids, a.ID)
	}

	messages, err := s.messages.ListByAppointments(ctx, ids)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return messages, nil
}

// Subscribe открывает подписку на новые сообщения записи. Вызывающий обязан закрыть подписку.
func (s *MessageService) Subscribe(ctx context.Context, actor model.Actor, appointmentID int64) (*pubsub.Subscription, error) {
	if _, err := s.participant(ctx, actor, appointmentID, false); err != nil {
		return nil, err
	}
	sub, err := s.broker.Subscribe(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Store("subscribe to messages", err)
	}
	return sub, nil
}

// Stats считает сообщения по записям пользователя: всего, за сегодня и за последние 7 дней
func (s *MessageService) Stats(ctx context.Context, actor model.Actor) (*model.MessageStats, error) {
	messages, err := s.ListForUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	startOfDay, weekAgo := s.windows()
	stats := &model.MessageStats{Total: len(messages)}
	for _, m := range messages {
		if !m.Timestamp.Before(startOfDay) {
			stats.Today++
		}
		if !m.Timestamp.Before(weekAgo) {
			stats.ThisWeek++
		}
	}
	return stats, nil
}

// GlobalStats те же счётчики по всем сообщениям системы
func (s *MessageService) GlobalStats(ctx context.Context) (*model.MessageStats, error) {
	startOfDay, weekAgo := s.windows()

	stats := &model.MessageStats{}
	var err error
	if stats.Total, err = s.messages.CountSince(ctx, time.Time{}); err != nil {
		return nil, apperr.Store("count messages", err)
	}
	if stats.Today, err = s.messages.CountSince(ctx, startOfDay); err != nil {
		return nil, apperr.Store("count messages", err)
	}
	if stats.ThisWeek, err = s.messages.CountSince(ctx, weekAgo); err != nil {
		return nil, apperr.Store("count messages", err)
	}
	return stats, nil
}

func (s *MessageService) windows() (startOfDay, weekAgo time.Time) {
	now := s.now().In(s.loc)
	startOfDay = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	weekAgo = now.AddDate(0, 0, -7)
	return startOfDay, weekAgo
}
