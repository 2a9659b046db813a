package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	*base.Repository
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет сообщение
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	query := `
		INSERT INTO messages (appointment_id, sender_id, sender_type, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, m.AppointmentID, m.SenderID, m.SenderType, m.Body).Scan(&m.ID, &m.Timestamp)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// ListByAppointment получает переписку по записи в хронологическом порядке
func (r *MessageRepository) ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.Message, error) {
	query := `
		SELECT id, appointment_id, sender_id, sender_type, body, created_at
		FROM messages
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list messages by appointment: %w", err)
	}

	return collectMessages(rows)
}

// ListByAppointments получает сообщения по нескольким записям, новые первыми
func (r *MessageRepository) ListByAppointments(ctx context.Context, appointmentIDs []int64) ([]*model.Message, error) {
	if len(appointmentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, appointment_id, sender_id, sender_type, body, created_at
		FROM messages
		WHERE appointment_id = ANY($1)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, appointmentIDs)
	if err != nil {
		return nil, fmt.Errorf("list messages by appointments: %w", err)
	}

	return collectMessages(rows)
}

// CountSince считает сообщения, отправленные начиная с since
func (r *MessageRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func collectMessages(rows pgx.Rows) ([]*model.Message, error) {
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.SenderID, &m.SenderType, &m.Body, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}
