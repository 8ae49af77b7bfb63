// Package cover управляет записями застрахованных иждивенцев.
// Ежемесячный взнос считается сервером при каждой записи: присланные
// клиентом значения взноса игнорируются.
package cover

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/coverplan/internal/lib/premium"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Ошибки уровня сервиса; HTTP-слой переводит их в коды ответов.
var (
	ErrCoverNotFound = errors.New("cover record not found")
	// ErrAmountNotAllowed — страховая сумма вне списка допустимых для возраста.
	ErrAmountNotAllowed = errors.New("cover amount is not available for this age")
)

// Repository — операции хранилища записей иждивенцев.
type Repository interface {
	CreateCover(ctx context.Context, cover models.ExtendedCover) (int, error)
	ListCovers(ctx context.Context, userUID string) ([]*models.ExtendedCover, error)
	UpdateCover(ctx context.Context, cover models.ExtendedCover) (int, error)
	RemoveCover(ctx context.Context, id int, userUID string) (int, error)
}

// Service — сервис расширенного покрытия.
type Service struct {
	repo Repository
}

// New создаёт сервис расширенного покрытия.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create добавляет иждивенца. Взнос пересчитывается по возрасту, категории
// родства и страховой сумме; сумма должна входить в допустимый список.
func (s *Service) Create(ctx context.Context, userUID string, req models.DummyCover) (*models.ExtendedCover, error) {
	const op = "cover.Create"

	if !premium.AllowedCoverAmount(req.Age, req.CoverAmount) {
		return nil, ErrAmountNotAllowed
	}

	record := models.ExtendedCover{
		UserUID:        userUID,
		Name:           req.Name,
		Relation:       req.Relation,
		Age:            req.Age,
		CoverAmount:    req.CoverAmount,
		MonthlyPremium: premium.Calculate(req.Age, premium.Relation(req.Relation), req.CoverAmount),
	}
	id, err := s.repo.CreateCover(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	record.ID = id
	return &record, nil
}

// List возвращает всех иждивенцев пользователя.
func (s *Service) List(ctx context.Context, userUID string) ([]*models.ExtendedCover, error) {
	const op = "cover.List"

	covers, err := s.repo.ListCovers(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return covers, nil
}

// Update перезаписывает запись иждивенца с пересчётом взноса.
// Чужая или несуществующая запись — не найдено.
func (s *Service) Update(ctx context.Context, userUID string, id int, req models.DummyCover) (*models.ExtendedCover, error) {
	const op = "cover.Update"

	if !premium.AllowedCoverAmount(req.Age, req.CoverAmount) {
		return nil, ErrAmountNotAllowed
	}

	record := models.ExtendedCover{
		ID:             id,
		UserUID:        userUID,
		Name:           req.Name,
		Relation:       req.Relation,
		Age:            req.Age,
		CoverAmount:    req.CoverAmount,
		MonthlyPremium: premium.Calculate(req.Age, premium.Relation(req.Relation), req.CoverAmount),
	}
	rows, err := s.repo.UpdateCover(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return nil, ErrCoverNotFound
	}
	return &record, nil
}

// Remove удаляет запись иждивенца пользователя.
func (s *Service) Remove(ctx context.Context, userUID string, id int) error {
	const op = "cover.Remove"

	rows, err := s.repo.RemoveCover(ctx, id, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrCoverNotFound
	}
	return nil
}

// Amounts возвращает допустимые страховые суммы для возраста.
func (s *Service) Amounts(age int) []float64 {
	return premium.AvailableCoverAmounts(age)
}
