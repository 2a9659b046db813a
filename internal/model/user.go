package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"  // Регистрация ждёт администратора
	UserStatusActive   UserStatus = "active"   // Может входить в систему
	UserStatusRejected UserStatus = "rejected" // Регистрация отклонена
	UserStatusInactive UserStatus = "inactive" // Мягко удалён
)

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Name            string     `json:"name"`
	Role            Role       `json:"role"`
	Department      string     `json:"department,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Approved        bool       `json:"approved"`
	Status          UserStatus `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	AddedBy         *int64     `json:"added_by,omitempty"` // nil означает system
	TelegramChatID  *int64     `json:"telegram_chat_id,omitempty"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Approved && u.Status == UserStatusActive
}

// Matches ищет подстроку в имени, кафедре или предмете без учёта регистра
func (u *User) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{u.Name, u.Department, u.Subject} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// NormalizeEmail приводит email к виду, в котором он хранится
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserFilter выборка пользователей; пустые поля не фильтруют
type UserFilter struct {
	Role   Role
	Status UserStatus
}

// TeacherPatch изменение профиля учителя администратором
type TeacherPatch struct {
	Name           *string `json:"name,omitempty"`
	Department     *string `json:"department,omitempty"`
	Subject        *string `json:"subject,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
}

// ProfilePatch изменение собственного профиля пользователем
type ProfilePatch struct {
	Phone          *string `json:"phone,omitempty"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
}

// Actor пользователь, от имени которого выполняется операция
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
