// Package auth реализует регистрацию, вход и восстановление доступа.
// Сессия — это JWT в httpOnly cookie; сервер состояния сессии не хранит.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coverplan/internal/lib/password"
	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Ошибки уровня сервиса; HTTP-слой переводит их в коды ответов.
var (
	ErrUserExists = errors.New("user with this email already exists")
	// ErrInvalidCredentials не различает неизвестный email и неверный пароль.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
)

// Repository — операции хранилища пользователей.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, token string) (int, error)
	SetResetToken(ctx context.Context, uid, token string) error
	ResetPasswordByToken(ctx context.Context, token, passwordHash string) (int, error)
}

// TokenMaker выпускает JWT для аутентифицированных пользователей.
type TokenMaker interface {
	GenerateToken(email, role, userUID string) (string, error)
}

// Notifier публикует уведомления в очередь; сбой очереди не ломает операцию.
type Notifier interface {
	Publish(ctx context.Context, msg models.Notification) error
}

// Service — сервис аутентификации.
type Service struct {
	repo     Repository
	tokens   TokenMaker
	notifier Notifier
	log      *slog.Logger
}

// New создаёт сервис аутентификации.
func New(repo Repository, tokens TokenMaker, notifier Notifier, log *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, notifier: notifier, log: log}
}

// Register создаёт пользователя и отправляет письмо подтверждения почты.
// Занятый email — конфликт.
func (s *Service) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	const op = "auth.Register"

	_, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return "", ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	verificationToken := uuid.New().String()
	uid, err := s.repo.CreateUser(ctx, models.User{
		Email:             req.Email,
		Name:              req.Name,
		PasswordHash:      hash,
		Role:              models.RoleUser,
		VerificationToken: &verificationToken,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.Notification{
		Type:  models.NotifyVerifyEmail,
		Email: req.Email,
		Name:  req.Name,
		Token: verificationToken,
	})
	return uid, nil
}

// Login проверяет учётные данные и выпускает JWT.
// Неизвестный email и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, req models.DummyLogin) (string, *models.User, error) {
	const op = "auth.Login"

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.Email, user.Role, user.UID)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// VerifyEmail подтверждает почту по токену из письма.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	const op = "auth.VerifyEmail"

	rows, err := s.repo.MarkEmailVerified(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// RequestReset отправляет письмо со ссылкой сброса пароля.
// Неизвестный email не выдаётся наружу: ответ одинаков в обоих случаях.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	const op = "auth.RequestReset"

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	resetToken := uuid.New().String()
	if err := s.repo.SetResetToken(ctx, user.UID, resetToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.Notification{
		Type:  models.NotifyResetLink,
		Email: user.Email,
		Name:  user.Name,
		Token: resetToken,
	})
	return nil
}

// ResetPassword устанавливает новый пароль по действующему токену сброса.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "auth.ResetPassword"

	hash, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := s.repo.ResetPasswordByToken(ctx, token, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// Me возвращает профиль пользователя по UID из токена.
func (s *Service) Me(ctx context.Context, uid string) (*models.User, error) {
	const op = "auth.Me"

	user, err := s.repo.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, msg models.Notification) {
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.log.Error("failed to publish notification",
			slog.String("type", msg.Type), sl.Err(err))
	}
}
