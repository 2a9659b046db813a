package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/identity"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"go.uber.org/zap"
)

const resetCodeText = "Password reset code"

// AccountService регистрация, вход и управление аккаунтами администратором
type AccountService struct {
	users    UserStore
	identity *identity.Provider
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewAccountService(users UserStore, provider *identity.Provider, notifier Notifier, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:    users,
		identity: provider,
		notifier: notifierOrNop(notifier),
		now:      time.Now,
		logger:   logger,
	}
}

type RegisterInput struct {
	Email          string
	Password       string
	Name           string
	Phone          string
	Department     string
	TelegramChatID *int64
}

type TeacherInput struct {
	Email          string
	Password       string
	Name           string
	Department     string
	Subject        string
	Phone          string
	TelegramChatID *int64
}

type AdminInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

func normalizeIdentity(email, name string) (string, string, error) {
	email = model.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", apperr.New(apperr.CodeInvalidInput, "invalid email address")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", apperr.New(apperr.CodeInvalidInput, "name is required")
	}
	return email, name, nil
}

// Register регистрирует студента. До одобрения администратором войти нельзя.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email, name, err := normalizeIdentity(in.Email, in.Name)
	if err != nil {
		return nil, err
	}
	if err := checkChatID(in.TelegramChatID); err != nil {
		return nil, err
	}

	hash, err := s.identity.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:          email,
		PasswordHash:   hash,
		Name:           name,
		Role:           model.RoleStudent,
		Phone:          strings.TrimSpace(in.Phone),
		Department:     strings.TrimSpace(in.Department),
		TelegramChatID: in.TelegramChatID,
		Approved:       false,
		Status:         model.UserStatusPending,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperr.Store("create user", err)
	}

	s.logger.Info("Student registered, waiting for approval", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login проверяет пароль и статус аккаунта и выдаёт сессию
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, *identity.Session, error) {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, nil, apperr.Store("get user", err)
	}
	if user == nil || !s.identity.VerifyPassword(user.PasswordHash, password) {
		return nil, nil, apperr.New(apperr.CodeUnauthorized, "invalid email or password")
	}

	switch {
	case user.Status == model.UserStatusPending:
		return nil, nil, apperr.New(apperr.CodePendingApproval, "your account is pending approval, please contact the administrator")
	case user.Status == model.UserStatusRejected:
		return nil, nil, apperr.New(apperr.CodeForbidden, "your registration was rejected")
	case !user.IsActive():
		return nil, nil, apperr.New(apperr.CodeForbidden, "your account is disabled")
	}

	session, err := s.identity.IssueToken(user)
	if err != nil {
		return nil, nil, apperr.Store("issue token", err)
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, session, nil
}

// Logout закрывает текущую сессию
func (s *AccountService) Logout(ctx context.Context, claims *identity.Claims) error {
	return s.identity.RevokeToken(ctx, claims)
}

// Me возвращает профиль текущего пользователя
func (s *AccountService) Me(ctx context.Context, userID int64) (*model.User, error) {
	return s.getUser(ctx, userID)
}

// UpdateProfile меняет телефон и привязку Telegram текущего пользователя.
// Через привязанный чат приходят уведомления и коды сброса пароля.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, patch model.ProfilePatch) (*model.User, error) {
	if err := checkChatID(patch.TelegramChatID); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.TelegramChatID != nil {
		user.TelegramChatID = patch.TelegramChatID
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperr.Store("update profile", err)
	}
	s.logger.Info("Profile updated", zap.Int64("user_id", user.ID), zap.Bool("telegram_linked", user.TelegramChatID != nil))
	return user, nil
}

func checkChatID(id *int64) error {
	if id != nil && *id == 0 {
		return apperr.New(apperr.CodeInvalidInput, "telegram chat id must be non-zero")
	}
	return nil
}

func (s *AccountService) getUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("get user", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeNotFound, "user not found")
	}
	return user, nil
}

// RequestPasswordReset отправляет код сброса пароля. Для неизвестного email ничего не делает,
// чтобы не раскрывать наличие аккаунта.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return apperr.Store("get user", err)
	}
	if user == nil {
		return nil
	}

	token, err := s.identity.IssueResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	s.notifier.DispatchSecret(user.ID, resetCodeText, token)
	s.logger.Info("Password reset requested", zap.Int64("user_id", user.ID))
	return nil
}

// ResetPassword меняет пароль по одноразовому коду
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := identity.ValidatePassword(newPassword); err != nil {
		return err
	}
	userID, err := s.identity.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.identity.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperr.Store("update password", err)
	}

	s.logger.Info("Password reset", zap.Int64("user_id", userID))
	return nil
}

// ListPendingStudents возвращает регистрации, ждущие решения администратора
func (s *AccountService) ListPendingStudents(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx, model.UserFilter{Role: model.RoleStudent, Status: model.UserStatusPending})
	if err != nil {
		return nil, apperr.Store("list pending students", err)
	}
	return users, nil
}

// ListUsers возвращает активных пользователей роли
func (s *AccountService) ListUsers(ctx context.Context, role model.Role) ([]*model.User, error) {
	if !role.Valid() {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown role %q", role)
	}
	users, err := s.users.List(ctx, model.UserFilter{Role: role, Status: model.UserStatusActive})
	if err != nil {
		return nil, apperr.Store("list users", err)
	}
	return users, nil
}

func (s *AccountService) pendingStudent(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleStudent {
		return nil, apperr.New(apperr.CodeNotFound, "student not found")
	}
	if user.Status != model.UserStatusPending {
		return nil, apperr.Newf(apperr.CodeInvalidState, "registration is already %s", user.Status)
	}
	return user, nil
}

// ApproveStudent одобряет регистрацию студента
func (s *AccountService) ApproveStudent(ctx context.Context, actor model.Actor, id int64) (*model.User, error) {
	user, err := s.pendingStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	adminID := actor.UserID
	user.Approved = true
	user.Status = model.UserStatusActive
	user.RejectionReason = ""
	user.ApprovedBy = &adminID
	user.ApprovedAt = &now

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperr.Store("approve student", err)
	}

	s.logger.Info("Student approved", zap.Int64("user_id", id), zap.Int64("admin_id", actor.UserID))
	s.notifier.Dispatch(id, "Your registration has been approved, you can now log in")
	return user, nil
}

// RejectStudent отклоняет регистрацию с причиной
func (s *AccountService) RejectStudent(ctx context.Context, actor model.Actor, id int64, reason string) (*model.User, error) {
	user, err := s.pendingStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Approved = false
	user.Status = model.UserStatusRejected
	user.RejectionReason = strings.TrimSpace(reason)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperr.Store("reject student", err)
	}

	s.logger.Info("Student rejected", zap.Int64("user_id", id), zap.Int64("admin_id", actor.UserID))
	return user, nil
}

// AddTeacher создаёт аккаунт учителя в изолированной области выдачи учётных данных,
// сессия администратора не затрагивается. Если email занят, владельцу отправляется код сброса пароля.
func (s *AccountService) AddTeacher(ctx context.Context, actor model.Actor, in TeacherInput) (*model.User, error) {
	email, name, err := normalizeIdentity(in.Email, in.Name)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Store("get user", err)
	}
	if existing != nil {
		return s.handleExistingTeacherEmail(ctx, existing, in.Password)
	}

	adminID := actor.UserID
	teacher := &model.User{
		Email:          email,
		Name:           name,
		Role:           model.RoleTeacher,
		Department:     strings.TrimSpace(in.Department),
		Subject:        strings.TrimSpace(in.Subject),
		Phone:          strings.TrimSpace(in.Phone),
		Approved:       true,
		Status:         model.UserStatusActive,
		AddedBy:        &adminID,
		TelegramChatID: in.TelegramChatID,
	}

	err = s.identity.Scoped(ctx, func(ctx context.Context, scope *identity.Scope) error {
		hash, err := scope.HashPassword(in.Password)
		if err != nil {
			return err
		}
		teacher.PasswordHash = hash
		if err := s.users.Create(ctx, teacher); err != nil {
			return apperr.Store("create teacher", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Teacher added", zap.Int64("teacher_id", teacher.ID), zap.Int64("admin_id", actor.UserID))
	return teacher, nil
}

// handleExistingTeacherEmail повторно активирует мягко удалённого учителя, если пароль совпал.
// Иначе владельцу email отправляется код сброса пароля и возвращается конфликт.
func (s *AccountService) handleExistingTeacherEmail(ctx context.Context, existing *model.User, password string) (*model.User, error) {
	if existing.Role == model.RoleTeacher && existing.Status == model.UserStatusInactive &&
		s.identity.VerifyPassword(existing.PasswordHash, password) {
		existing.Approved = true
		existing.Status = model.UserStatusActive
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, apperr.Store("reactivate teacher", err)
		}
		s.logger.Info("Teacher reactivated", zap.Int64("teacher_id", existing.ID))
		return existing, nil
	}

	err := s.identity.Scoped(ctx, func(ctx context.Context, scope *identity.Scope) error {
		token, err := scope.IssueResetToken(ctx, existing.ID)
		if err != nil {
			return err
		}
		s.notifier.DispatchSecret(existing.ID, resetCodeText, token)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to issue password reset for existing account", zap.Int64("user_id", existing.ID), zap.Error(err))
	}

	return nil, apperr.New(apperr.CodeConflict,
		"a user with this email already exists, a password reset code has been sent to its owner")
}

// UpdateTeacher меняет профиль учителя. Пароль этим методом не меняется.
func (s *AccountService) UpdateTeacher(ctx context.Context, id int64, patch model.TeacherPatch) (*model.User, error) {
	teacher, err := s.teacher(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, "name is required")
		}
		teacher.Name = name
	}
	if patch.Department != nil {
		teacher.Department = strings.TrimSpace(*patch.Department)
	}
	if patch.Subject != nil {
		teacher.Subject = strings.TrimSpace(*patch.Subject)
	}
	if patch.Phone != nil {
		teacher.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.TelegramChatID != nil {
		teacher.TelegramChatID = patch.TelegramChatID
	}

	if err := s.users.Update(ctx, teacher); err != nil {
		return nil, apperr.Store("update teacher", err)
	}
	return teacher, nil
}

// DeleteTeacher удаляет учителя. Мягкое удаление только деактивирует аккаунт.
func (s *AccountService) DeleteTeacher(ctx context.Context, id int64, hard bool) error {
	teacher, err := s.teacher(ctx, id)
	if err != nil {
		return err
	}

	if hard {
		if _, err := s.users.Delete(ctx, id); err != nil {
			return apperr.Store("delete teacher", err)
		}
		s.logger.Info("Teacher deleted", zap.Int64("teacher_id", id))
		return nil
	}

	teacher.Approved = false
	teacher.Status = model.UserStatusInactive
	if err := s.users.Update(ctx, teacher); err != nil {
		return apperr.Store("deactivate teacher", err)
	}
	s.logger.Info("Teacher deactivated", zap.Int64("teacher_id", id))
	return nil
}

func (s *AccountService) teacher(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleTeacher {
		return nil, apperr.New(apperr.CodeNotFound, "teacher not found")
	}
	return user, nil
}

// AddAdmin создаёт администратора. actor == nil означает создание системой при старте.
func (s *AccountService) AddAdmin(ctx context.Context, actor *model.Actor, in AdminInput) (*model.User, error) {
	email, name, err := normalizeIdentity(in.Email, in.Name)
	if err != nil {
		return nil, err
	}

	admin := &model.User{
		Email:    email,
		Name:     name,
		Role:     model.RoleAdmin,
		Phone:    strings.TrimSpace(in.Phone),
		Approved: true,
		Status:   model.UserStatusActive,
	}
	if actor != nil {
		addedBy := actor.UserID
		admin.AddedBy = &addedBy
	}

	err = s.identity.Scoped(ctx, func(ctx context.Context, scope *identity.Scope) error {
		hash, err := scope.HashPassword(in.Password)
		if err != nil {
			return err
		}
		admin.PasswordHash = hash
		if err := s.users.Create(ctx, admin); err != nil {
			return apperr.Store("create admin", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Admin added", zap.Int64("admin_id", admin.ID))
	return admin, nil
}

// EnsureAdmin создаёт первого администратора из конфигурации, если его ещё нет
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return apperr.Store("get user", err)
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			return fmt.Errorf("bootstrap admin email %s belongs to a %s", email, existing.Role)
		}
		return nil
	}
	_, err = s.AddAdmin(ctx, nil, AdminInput{Email: email, Password: password, Name: name})
	return err
}

// SearchTeachers ищет активных учителей по имени, кафедре или предмету
func (s *AccountService) SearchTeachers(ctx context.Context, query string) ([]*model.User, error) {
	teachers, err := s.ListUsers(ctx, model.RoleTeacher)
	if err != nil {
		return nil, err
	}

	result := make([]*model.User, 0, len(teachers))
	for _, t := range teachers {
		if t.Matches(query) {
			result = append(result, t)
		}
	}
	return result, nil
}

// UserStats считает пользователей по ролям и статусам регистрации
func (s *AccountService) UserStats(ctx context.Context) (*model.UserStats, error) {
	users, err := s.users.List(ctx, model.UserFilter{})
	if err != nil {
		return nil, apperr.Store("list users", err)
	}

	stats := &model.UserStats{}
	for _, u := range users {
		stats.Add(u)
	}
	return stats, nil
}
