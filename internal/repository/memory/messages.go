package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/model"
)

type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected("messages.create"); err != nil {
		return err
	}

	m.ID = r.s.nextID()
	m.Timestamp = r.s.now()
	r.s.d.messages[m.ID] = *m
	return nil
}

func (r *MessageRepository) ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.Message, error) {
	messages, err := r.list(ctx, func(m *model.Message) bool { return m.AppointmentID == appointmentID })
	if err != nil {
		return nil, err
	}
	sort.Slice(messages, func(i, j int) bool { return before(messages[i], messages[j]) })
	return messages, nil
}

func (r *MessageRepository) ListByAppointments(ctx context.Context, appointmentIDs []int64) ([]*model.Message, error) {
	if len(appointmentIDs) == 0 {
		return nil, nil
	}
	ids := make(map[int64]struct{}, len(appointmentIDs))
	for _, id := range appointmentIDs {
		ids[id] = struct{}{}
	}

	messages, err := r.list(ctx, func(m *model.Message) bool {
		_, ok := ids[m.AppointmentID]
		return ok
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(messages, func(i, j int) bool { return before(messages[j], messages[i]) })
	return messages, nil
}

func (r *MessageRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	messages, err := r.list(ctx, func(m *model.Message) bool { return !m.Timestamp.Before(since) })
	if err != nil {
		return 0, err
	}
	return len(messages), nil
}

func (r *MessageRepository) list(ctx context.Context, match func(*model.Message) bool) ([]*model.Message, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected("messages.list"); err != nil {
		return nil, err
	}

	var result []*model.Message
	for _, m := range r.s.d.messages {
		m := m
		if match(&m) {
			result = append(result, &m)
		}
	}
	return result, nil
}

func before(a, b *model.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}
