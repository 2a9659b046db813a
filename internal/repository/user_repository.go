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

const userColumns = `id, email, password_hash, name, role, department, subject, phone, approved, status,
	rejection_reason, added_by, telegram_chat_id, approved_by, approved_at, created_at, updated_at`

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.Department,
		&u.Subject,
		&u.Phone,
		&u.Approved,
		&u.Status,
		&u.RejectionReason,
		&u.AddedBy,
		&u.TelegramChatID,
		&u.ApprovedBy,
		&u.ApprovedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, department, subject, phone, approved, status,
		                   added_by, telegram_chat_id, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		u.Email,
		u.PasswordHash,
		u.Name,
		u.Role,
		u.Department,
		u.Subject,
		u.Phone,
		u.Approved,
		u.Status,
		u.AddedBy,
		u.TelegramChatID,
		u.ApprovedBy,
		u.ApprovedAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperr.New(apperr.CodeConflict, "email is already registered")
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByEmail получает пользователя по email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByIDs получает пользователей пачкой
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// Update сохраняет профиль и статус пользователя
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET name = $2, department = $3, subject = $4, phone = $5, approved = $6, status = $7,
		    rejection_reason = $8, telegram_chat_id = $9, approved_by = $10, approved_at = $11,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		u.ID,
		u.Name,
		u.Department,
		u.Subject,
		u.Phone,
		u.Approved,
		u.Status,
		u.RejectionReason,
		u.TelegramChatID,
		u.ApprovedBy,
		u.ApprovedAt,
	).Scan(&u.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return apperr.New(apperr.CodeNotFound, "user not found")
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// UpdatePassword меняет хеш пароля
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	affected, err := r.ExecAffected(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return apperr.New(apperr.CodeNotFound, "user not found")
	}
	return nil
}

// Delete удаляет пользователя
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected > 0, nil
}

// List получает пользователей по роли и статусу, сортировка по имени
func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY name, id
	`

	rows, err := r.Query(ctx, query, string(filter.Role), string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return collectUsers(rows)
}
