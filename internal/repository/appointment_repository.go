package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, teacher_id, student_id, slot_date, slot_time, purpose, status, reason, schedule_slot_id, created_at, updated_at`

type AppointmentRepository struct {
	*base.Repository
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{Repository: base.NewRepository(pool)}
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.TeacherID,
		&a.StudentID,
		&a.Date,
		&a.Time,
		&a.Purpose,
		&a.Status,
		&a.Reason,
		&a.ScheduleSlotID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create создаёт запись на занятие
func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (teacher_id, student_id, slot_date, slot_time, purpose, status, reason, schedule_slot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		a.TeacherID,
		a.StudentID,
		a.Date,
		a.Time,
		a.Purpose,
		a.Status,
		a.Reason,
		a.ScheduleSlotID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	return nil
}

// GetByID получает запись по ID
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	return a, nil
}

// UpdateStatus меняет статус, только если запись всё ещё в статусе from
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus, reason string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $3, reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, from, to, reason)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}

	return affected == 1, nil
}

// List получает записи по фильтру, новые первыми
func (r *AppointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ($1::BIGINT = 0 OR teacher_id = $1)
		  AND ($2::BIGINT = 0 OR student_id = $2)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, filter.TeacherID, filter.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}

	return appointments, rows.Err()
}

// CountSeatsBySlot считает записи, которые занимают место, по каждому слоту
func (r *AppointmentRepository) CountSeatsBySlot(ctx context.Context) (map[int64]int, error) {
	query := `
		SELECT schedule_slot_id, COUNT(*)
		FROM appointments
		WHERE schedule_slot_id IS NOT NULL
		  AND status IN ('pending', 'approved', 'completed')
		GROUP BY schedule_slot_id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count seats by slot: %w", err)
	}
	defer rows.Close()

	seats := make(map[int64]int)
	for rows.Next() {
		var (
			slotID int64
			n      int
		)
		if err := rows.Scan(&slotID, &n); err != nil {
			return nil, fmt.Errorf("scan seat count: %w", err)
		}
		seats[slotID] = n
	}

	return seats, rows.Err()
}
