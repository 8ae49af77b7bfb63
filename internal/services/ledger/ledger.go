// Package ledger читает историю счетов пользователя и агрегаты для админки.
// Счета и транзакции только добавляются; сервис их не мутирует.
package ledger

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

// Границы пагинации списка счетов.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Repository — операции чтения журнала и агрегатов.
type Repository interface {
	ListInvoices(ctx context.Context, userUID string, limit, offset int) ([]*models.Invoice, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountActiveSubscriptions(ctx context.Context) (int, error)
	SumPaidInvoices(ctx context.Context) (float64, error)
}

// Service — сервис журнала платежей и админских агрегатов.
type Service struct {
	repo Repository
}

// New создаёт сервис журнала.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Invoices возвращает счета пользователя, новые сверху.
func (s *Service) Invoices(ctx context.Context, userUID string, limit, offset int) ([]*models.Invoice, error) {
	const op = "ledger.Invoices"

	limit, offset = clampPage(limit, offset)
	invoices, err := s.repo.ListInvoices(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return invoices, nil
}

// Users возвращает страницу списка пользователей для админки.
func (s *Service) Users(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "ledger.Users"

	limit, offset = clampPage(limit, offset)
	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// Stats собирает агрегаты админской панели: всего пользователей,
// активных подписчиков и выручку по оплаченным счетам.
func (s *Service) Stats(ctx context.Context) (*models.AdminStats, error) {
	const op = "ledger.Stats"

	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	active, err := s.repo.CountActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	revenue, err := s.repo.SumPaidInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AdminStats{
		TotalUsers:        total,
		ActiveSubscribers: active,
		Revenue:           revenue,
	}, nil
}
