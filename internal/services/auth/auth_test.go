package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coverplan/internal/lib/password"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *mockRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockRepo) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockRepo) MarkEmailVerified(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) SetResetToken(ctx context.Context, uid, token string) error {
	return m.Called(ctx, uid, token).Error(0)
}

func (m *mockRepo) ResetPasswordByToken(ctx context.Context, token, passwordHash string) (int, error) {
	args := m.Called(ctx, token, passwordHash)
	return args.Int(0), args.Error(1)
}

type stubTokens struct{ err error }

func (s stubTokens) GenerateToken(_, _, _ string) (string, error) {
	return "signed-token", s.err
}

type recordingNotifier struct {
	published []models.Notification
}

func (n *recordingNotifier) Publish(_ context.Context, msg models.Notification) error {
	n.published = append(n.published, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
}

func TestRegister(t *testing.T) {
	t.Run("новый пользователь", func(t *testing.T) {
		repo := &mockRepo{}
		notifier := &recordingNotifier{}
		svc := New(repo, stubTokens{}, notifier, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "new@example.com").
			Return(nil, notFound("storage.GetUserByEmail"))
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Email == "new@example.com" && u.Role == models.RoleUser &&
				u.VerificationToken != nil && u.PasswordHash != "secret-pass"
		})).Return("uid-1", nil)

		uid, err := svc.Register(t.Context(), models.DummyRegister{
			Email:    "new@example.com",
			Password: "secret-pass",
			Name:     "Thabo",
		})
		require.NoError(t, err)
		assert.Equal(t, "uid-1", uid)

		require.Len(t, notifier.published, 1)
		assert.Equal(t, models.NotifyVerifyEmail, notifier.published[0].Type)
		assert.NotEmpty(t, notifier.published[0].Token)
	})

	t.Run("занятый email", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "taken@example.com").
			Return(&models.User{UID: "uid-1"}, nil)

		_, err := svc.Register(t.Context(), models.DummyRegister{
			Email:    "taken@example.com",
			Password: "secret-pass",
			Name:     "Thabo",
		})
		require.ErrorIs(t, err, ErrUserExists)
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	hash, err := password.GetHash("correct-pass")
	require.NoError(t, err)
	user := &models.User{UID: "uid-1", Email: "user@example.com",
		Role: models.RoleUser, PasswordHash: hash}

	t.Run("верные учетные данные", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil)

		token, got, err := svc.Login(t.Context(), models.DummyLogin{
			Email: "user@example.com", Password: "correct-pass",
		})
		require.NoError(t, err)
		assert.Equal(t, "signed-token", token)
		assert.Equal(t, "uid-1", got.UID)
	})

	t.Run("неверный пароль", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil)

		_, _, err := svc.Login(t.Context(), models.DummyLogin{
			Email: "user@example.com", Password: "wrong-pass",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("неизвестный email дает ту же ошибку", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").
			Return(nil, notFound("storage.GetUserByEmail"))

		_, _, err := svc.Login(t.Context(), models.DummyLogin{
			Email: "ghost@example.com", Password: "whatever-pass",
		})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerifyEmail(t *testing.T) {
	t.Run("действующий токен", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("MarkEmailVerified", mock.Anything, "tok-1").Return(1, nil)
		require.NoError(t, svc.VerifyEmail(t.Context(), "tok-1"))
	})

	t.Run("неизвестный токен", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("MarkEmailVerified", mock.Anything, "tok-x").Return(0, nil)
		require.ErrorIs(t, svc.VerifyEmail(t.Context(), "tok-x"), ErrTokenInvalid)
	})
}

func TestRequestReset(t *testing.T) {
	t.Run("известный email получает письмо", func(t *testing.T) {
		repo := &mockRepo{}
		notifier := &recordingNotifier{}
		svc := New(repo, stubTokens{}, notifier, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "user@example.com").
			Return(&models.User{UID: "uid-1", Email: "user@example.com", Name: "Thabo"}, nil)
		repo.On("SetResetToken", mock.Anything, "uid-1", mock.AnythingOfType("string")).Return(nil)

		require.NoError(t, svc.RequestReset(t.Context(), "user@example.com"))
		require.Len(t, notifier.published, 1)
		assert.Equal(t, models.NotifyResetLink, notifier.published[0].Type)
	})

	t.Run("неизвестный email не выдается наружу", func(t *testing.T) {
		repo := &mockRepo{}
		notifier := &recordingNotifier{}
		svc := New(repo, stubTokens{}, notifier, discardLogger())

		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").
			Return(nil, notFound("storage.GetUserByEmail"))

		require.NoError(t, svc.RequestReset(t.Context(), "ghost@example.com"))
		assert.Empty(t, notifier.published)
		repo.AssertNotCalled(t, "SetResetToken", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("действующий токен", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("ResetPasswordByToken", mock.Anything, "tok-1",
			mock.AnythingOfType("string")).Return(1, nil)
		require.NoError(t, svc.ResetPassword(t.Context(), "tok-1", "new-password"))
	})

	t.Run("просроченный токен", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("ResetPasswordByToken", mock.Anything, "tok-old",
			mock.AnythingOfType("string")).Return(0, nil)
		require.ErrorIs(t, svc.ResetPassword(t.Context(), "tok-old", "new-password"), ErrTokenInvalid)
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo, stubTokens{}, &recordingNotifier{}, discardLogger())

		repo.On("ResetPasswordByToken", mock.Anything, "tok-1",
			mock.AnythingOfType("string")).Return(0, errors.New("connection lost"))
		require.Error(t, svc.ResetPassword(t.Context(), "tok-1", "new-password"))
	})
}
