package cover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) CreateCover(ctx context.Context, cover models.ExtendedCover) (int, error) {
	args := m.Called(ctx, cover)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) ListCovers(ctx context.Context, userUID string) ([]*models.ExtendedCover, error) {
	args := m.Called(ctx, userUID)
	covers, _ := args.Get(0).([]*models.ExtendedCover)
	return covers, args.Error(1)
}

func (m *mockRepo) UpdateCover(ctx context.Context, cover models.ExtendedCover) (int, error) {
	args := m.Called(ctx, cover)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) RemoveCover(ctx context.Context, id int, userUID string) (int, error) {
	args := m.Called(ctx, id, userUID)
	return args.Int(0), args.Error(1)
}

func TestCreate(t *testing.T) {
	t.Run("взнос считает сервер", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		// SPOUSE 30 лет, 20000: 20 * 2.55 = 51.00
		repo.On("CreateCover", mock.Anything, mock.MatchedBy(func(c models.ExtendedCover) bool {
			return c.MonthlyPremium == 51.0 && c.UserUID == "uid-1"
		})).Return(5, nil)

		record, err := svc.Create(t.Context(), "uid-1", models.DummyCover{
			Name:        "Lerato",
			Relation:    "SPOUSE",
			Age:         30,
			CoverAmount: 20000,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, record.ID)
		assert.InDelta(t, 51.0, record.MonthlyPremium, 1e-9)
	})

	t.Run("недопустимая для возраста сумма", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		// С 50 лет максимум 30000.
		_, err := svc.Create(t.Context(), "uid-1", models.DummyCover{
			Name:        "Gogo",
			Relation:    "PARENT",
			Age:         63,
			CoverAmount: 50000,
		})
		require.ErrorIs(t, err, ErrAmountNotAllowed)
		repo.AssertNotCalled(t, "CreateCover", mock.Anything, mock.Anything)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("обновление пересчитывает взнос", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		// CHILD 10 лет, 10000: 10 * 2.05 = 20.50
		repo.On("UpdateCover", mock.Anything, mock.MatchedBy(func(c models.ExtendedCover) bool {
			return c.ID == 5 && c.MonthlyPremium == 20.5
		})).Return(1, nil)

		record, err := svc.Update(t.Context(), "uid-1", 5, models.DummyCover{
			Name:        "Sipho",
			Relation:    "CHILD",
			Age:         10,
			CoverAmount: 10000,
		})
		require.NoError(t, err)
		assert.InDelta(t, 20.5, record.MonthlyPremium, 1e-9)
	})

	t.Run("чужая запись не видна", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		repo.On("UpdateCover", mock.Anything, mock.Anything).Return(0, nil)

		_, err := svc.Update(t.Context(), "uid-2", 5, models.DummyCover{
			Name:        "Sipho",
			Relation:    "CHILD",
			Age:         10,
			CoverAmount: 10000,
		})
		require.ErrorIs(t, err, ErrCoverNotFound)
	})
}

func TestRemove(t *testing.T) {
	t.Run("запись удалена", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		repo.On("RemoveCover", mock.Anything, 5, "uid-1").Return(1, nil)
		require.NoError(t, svc.Remove(t.Context(), "uid-1", 5))
	})

	t.Run("записи нет", func(t *testing.T) {
		repo := &mockRepo{}
		svc := New(repo)

		repo.On("RemoveCover", mock.Anything, 9, "uid-1").Return(0, nil)
		require.ErrorIs(t, svc.Remove(t.Context(), "uid-1", 9), ErrCoverNotFound)
	})
}

func TestAmounts(t *testing.T) {
	svc := New(&mockRepo{})

	assert.Equal(t, []float64{10000, 20000, 30000, 50000, 75000, 100000}, svc.Amounts(30))
	assert.Equal(t, []float64{10000, 20000, 30000}, svc.Amounts(50))
	// Неизвестный возраст трактуется консервативно.
	assert.Equal(t, []float64{10000, 20000, 30000}, svc.Amounts(0))
}
