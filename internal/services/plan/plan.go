// Package plan обслуживает неизменяемый каталог из пяти тарифов.
// Каталог сеется при старте приложения и читается через кеш.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/coverplan/internal/lib/sl"
	"github.com/magabrotheeeer/coverplan/internal/models"
)

const (
	catalogKey = "plans:catalog"
	cacheTTL   = time.Hour
)

// Repository — операции хранилища каталога.
type Repository interface {
	UpsertPlan(ctx context.Context, plan models.Plan) error
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// Cache — кеш каталога тарифов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service — сервис каталога тарифов.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создаёт сервис каталога.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// Пять фиксированных тарифов. Цены в ZAR, порядок — по возрастанию цены.
var catalog = []models.Plan{
	{Name: models.PlanEssential, Price: 99, Currency: "ZAR", Features: []string{
		"Cover for 1 member",
		"R10,000 accidental death benefit",
		"24/7 support line",
	}},
	{Name: models.PlanStandard, Price: 149, Currency: "ZAR", Features: []string{
		"Cover for 2 members",
		"R20,000 accidental death benefit",
		"24/7 support line",
		"Repatriation of mortal remains",
	}},
	{Name: models.PlanPremium, Price: 249, Currency: "ZAR", Features: []string{
		"Cover for 4 members",
		"R30,000 accidental death benefit",
		"24/7 support line",
		"Repatriation of mortal remains",
		"Grocery benefit for 3 months",
	}},
	{Name: models.PlanFamily, Price: 349, Currency: "ZAR", Features: []string{
		"Cover for 6 members",
		"R50,000 accidental death benefit",
		"24/7 support line",
		"Repatriation of mortal remains",
		"Grocery benefit for 6 months",
	}},
	{Name: models.PlanUltimate, Price: 499, Currency: "ZAR", Features: []string{
		"Cover for 8 members",
		"R100,000 accidental death benefit",
		"24/7 support line",
		"Repatriation of mortal remains",
		"Grocery benefit for 12 months",
		"Airtime benefit",
	}},
}

// Seed идемпотентно записывает пять тарифов в каталог.
// Существующие записи не перезаписываются.
func (s *Service) Seed(ctx context.Context) error {
	const op = "plan.Seed"
	for _, p := range catalog {
		if err := s.repo.UpsertPlan(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// List возвращает каталог тарифов по возрастанию цены, сначала из кеша.
func (s *Service) List(ctx context.Context) ([]*models.Plan, error) {
	const op = "plan.List"

	var cached []*models.Plan
	if hit, err := s.cache.Get(catalogKey, &cached); err == nil && hit {
		return cached, nil
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(catalogKey, plans, cacheTTL); err != nil {
		s.log.Warn("failed to cache plan catalog", sl.Err(err))
	}
	return plans, nil
}
