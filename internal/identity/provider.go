// Package identity выдаёт и проверяет учётные данные: хеши паролей, JWT сессии, токены сброса пароля.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/appointment_booking/internal/apperr"
	"github.com/Freeeeeet/appointment_booking/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength  = 6
	resetTokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	resetTokenLength   = 32
)

// TokenStore хранит отозванные сессии и токены сброса пароля
type TokenStore interface {
	SaveResetToken(ctx context.Context, token string, userID int64, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, token string) (int64, bool, error)
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Options struct {
	Secret        string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int
}

// Claims содержимое JWT
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID возвращает ID пользователя из sub
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// Session выданный пользователю токен
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Provider struct {
	secret   []byte
	ttl      time.Duration
	resetTTL time.Duration
	cost     int
	tokens   TokenStore
	now      func() time.Time
}

func NewProvider(opts Options, tokens TokenStore) *Provider {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Provider{
		secret:   []byte(opts.Secret),
		ttl:      opts.TokenTTL,
		resetTTL: opts.ResetTokenTTL,
		cost:     cost,
		tokens:   tokens,
		now:      time.Now,
	}
}

// SetClock подменяет часы, используется в тестах
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Newf(apperr.CodeInvalidInput, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func (p *Provider) HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (p *Provider) VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken выдаёт JWT для пользователя
func (p *Provider) IssueToken(user *model.User) (*Session, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// ParseToken проверяет подпись, срок действия и отзыв токена
func (p *Provider) ParseToken(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid or expired token")
	}

	if _, err := claims.UserID(); err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid token subject")
	}

	revoked, err := p.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Store("check token revocation", err)
	}
	if revoked {
		return nil, apperr.New(apperr.CodeUnauthorized, "session has been closed")
	}

	return claims, nil
}

// RevokeToken закрывает сессию до истечения её срока
func (p *Provider) RevokeToken(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(p.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := p.tokens.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperr.Store("revoke token", err)
	}
	return nil
}

// IssueResetToken создаёт одноразовый токен сброса пароля
func (p *Provider) IssueResetToken(ctx context.Context, userID int64) (string, error) {
	token, err := gonanoid.Generate(resetTokenAlphabet, resetTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := p.tokens.SaveResetToken(ctx, token, userID, p.resetTTL); err != nil {
		return "", apperr.Store("save reset token", err)
	}
	return token, nil
}

// ConsumeResetToken погашает токен сброса и возвращает владельца
func (p *Provider) ConsumeResetToken(ctx context.Context, token string) (int64, error) {
	userID, ok, err := p.tokens.ConsumeResetToken(ctx, token)
	if err != nil {
		return 0, apperr.Store("consume reset token", err)
	}
	if !ok {
		return 0, apperr.New(apperr.CodeUnauthorized, "reset token is invalid or expired")
	}
	return userID, nil
}

var errScopeReleased = errors.New("identity scope already released")

// Scope изолированная область выдачи учётных данных: создание чужого аккаунта
// не затрагивает сессию того, кто его создаёт. Всё, что выдано в области,
// отзывается, если операция завершилась ошибкой.
type Scope struct {
	provider *Provider
	issued   []string
	released bool
}

// Scoped открывает область, выполняет fn и освобождает область
func (p *Provider) Scoped(ctx context.Context, fn func(ctx context.Context, scope *Scope) error) error {
	scope := &Scope{provider: p}
	err := fn(ctx, scope)
	scope.release(ctx, err != nil)
	return err
}

func (s *Scope) HashPassword(password string) (string, error) {
	if s.released {
		return "", errScopeReleased
	}
	return s.provider.HashPassword(password)
}

func (s *Scope) IssueResetToken(ctx context.Context, userID int64) (string, error) {
	if s.released {
		return "", errScopeReleased
	}
	token, err := s.provider.IssueResetToken(ctx, userID)
	if err != nil {
		return "", err
	}
	s.issued = append(s.issued, token)
	return token, nil
}

func (s *Scope) release(ctx context.Context, revoke bool) {
	s.released = true
	if !revoke {
		return
	}
	for _, token := range s.issued {
		_, _, _ = s.provider.tokens.ConsumeResetToken(ctx, token)
	}
	s.issued = nil
}
