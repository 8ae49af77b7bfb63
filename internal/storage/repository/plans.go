package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

// UpsertPlan идемпотентно добавляет тариф в каталог. Существующая запись
// не перезаписывается: каталог неизменяем, кроме привязки внешних id.
func (s *Storage) UpsertPlan(ctx context.Context, plan models.Plan) error {
	const op = "storage.UpsertPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	features, err := models.MarshalFeatures(plan.Features)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO plans (name, price, currency, features)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (name) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, plan.Name, plan.Price, plan.Currency, features); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanPlan(row interface{ Scan(...any) error }) (*models.Plan, error) {
	var p models.Plan
	var features string
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &features,
		&p.ExternalProductID, &p.ExternalPriceID); err != nil {
		return nil, err
	}
	parsed, err := models.UnmarshalFeatures(features)
	if err != nil {
		return nil, err
	}
	p.Features = parsed
	return &p, nil
}

const planColumns = `id, name, price, currency, features, external_product_id, external_price_id`

// GetPlanByName возвращает тариф по точному имени.
func (s *Storage) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	const op = "storage.GetPlanByName"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE name = $1`, name)
	plan, err := scanPlan(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// ListPlans возвращает каталог тарифов по возрастанию цены.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans ORDER BY price`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, plan)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AttachExternalIDs привязывает к тарифу идентификаторы продукта и цены шлюза.
func (s *Storage) AttachExternalIDs(ctx context.Context, planID int, productID, priceID string) error {
	const op = "storage.AttachExternalIDs"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans
			  SET external_product_id = $1, external_price_id = $2
			  WHERE id = $3`
	if _, err := s.DB.ExecContext(ctx, query, productID, priceID, planID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
