package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/Freeeeeet/appointment_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, teacher_id, slot_date, slot_time, duration, max_students, current_bookings, status, purpose, created_at, updated_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row pgx.Row) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.Date,
		&slot.Time,
		&slot.Duration,
		&slot.MaxStudents,
		&slot.CurrentBookings,
		&slot.Status,
		&slot.Purpose,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.ScheduleSlot, error) {
	defer rows.Close()

	var slots []*model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	query := `
		INSERT INTO schedule_slots (teacher_id, slot_date, slot_time, duration, max_students, current_bookings, status, purpose)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.TeacherID,
		slot.Date,
		slot.Time,
		slot.Duration,
		slot.MaxStudents,
		slot.CurrentBookings,
		slot.Status,
		slot.Purpose,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperr.New(apperr.CodeDuplicateSlot, "a slot already exists for this date and time")
		}
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// GetByKey получает слот учителя на конкретные дату и время
func (r *SlotRepository) GetByKey(ctx context.Context, teacherID int64, date, clock string) (*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE teacher_id = $1 AND slot_date = $2 AND slot_time = $3
	`

	slot, err := scanSlot(r.QueryRow(ctx, query, teacherID, date, clock))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by key: %w", err)
	}

	return slot, nil
}

// Update сохраняет редактируемые поля слота, если счётчик записей и статус не изменились
// с момента чтения. Возвращает false, если слот изменился или исчез.
func (r *SlotRepository) Update(ctx context.Context, slot *model.ScheduleSlot, expected model.SlotCounters) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET slot_date = $4, slot_time = $5, duration = $6, max_students = $7,
		    status = $8, purpose = $9, updated_at = NOW()
		WHERE id = $1 AND current_bookings = $2 AND status = $3
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.ID,
		expected.CurrentBookings,
		expected.Status,
		slot.Date,
		slot.Time,
		slot.Duration,
		slot.MaxStudents,
		slot.Status,
		slot.Purpose,
	).Scan(&slot.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		if base.IsUniqueViolation(err) {
			return false, apperr.New(apperr.CodeDuplicateSlot, "a slot already exists for this date and time")
		}
		return false, fmt.Errorf("update slot: %w", err)
	}

	return true, nil
}

// SwapCounters меняет счётчик записей и статус, только если они не изменились с момента чтения
func (r *SlotRepository) SwapCounters(ctx context.Context, id int64, expected, next model.SlotCounters) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET current_bookings = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND current_bookings = $2 AND status = $3
	`

	affected, err := r.ExecAffected(ctx, query, id, expected.CurrentBookings, expected.Status, next.CurrentBookings, next.Status)
	if err != nil {
		return false, fmt.Errorf("swap slot counters: %w", err)
	}

	return affected == 1, nil
}

// Delete удаляет слот, если его счётчик и статус не изменились с момента чтения
func (r *SlotRepository) Delete(ctx context.Context, id int64, expected model.SlotCounters) (bool, error) {
	query := `DELETE FROM schedule_slots WHERE id = $1 AND current_bookings = $2 AND status = $3`

	affected, err := r.ExecAffected(ctx, query, id, expected.CurrentBookings, expected.Status)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}
	return affected == 1, nil
}

// ListByTeacher получает слоты учителя, пустой статус означает все статусы
func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID int64, status model.SlotStatus) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE teacher_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY slot_date, slot_time
	`

	rows, err := r.Query(ctx, query, teacherID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list slots by teacher: %w", err)
	}

	return collectSlots(rows)
}

// ListAvailable получает слоты со статусом available с учётом фильтров
func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT s.id, s.teacher_id, s.slot_date, s.slot_time, s.duration, s.max_students,
		       s.current_bookings, s.status, s.purpose, s.created_at, s.updated_at
		FROM schedule_slots s
		JOIN users u ON u.id = s.teacher_id
		WHERE s.status = 'available'
		  AND ($1 = '' OR s.slot_date = $1)
		  AND ($2::BIGINT = 0 OR s.teacher_id = $2)
		  AND ($3 = '' OR LOWER(u.department) = LOWER($3))
		ORDER BY s.slot_date, s.slot_time
	`

	rows, err := r.Query(ctx, query, filter.Date, filter.TeacherID, filter.Department)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	return collectSlots(rows)
}

// ListOpen получает слоты, статус которых выводится из счётчика
func (r *SlotRepository) ListOpen(ctx context.Context) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE status IN ('available', 'booked', 'fully_booked')
		ORDER BY id
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	return collectSlots(rows)
}

// CountByStatus считает слоты по статусам, teacherID = 0 означает все слоты
func (r *SlotRepository) CountByStatus(ctx context.Context, teacherID int64) (map[model.SlotStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM schedule_slots
		WHERE ($1::BIGINT = 0 OR teacher_id = $1)
		GROUP BY status
	`

	rows, err := r.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("count slots by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.SlotStatus]int)
	for rows.Next() {
		var (
			status model.SlotStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan slot count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}
