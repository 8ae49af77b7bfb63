package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

// CreateCover вставляет запись иждивенца и возвращает её ID.
func (s *Storage) CreateCover(ctx context.Context, cover models.ExtendedCover) (int, error) {
	const op = "storage.CreateCover"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO covers (user_uid, name, relation, age, cover_amount, monthly_premium)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		cover.UserUID, cover.Name, cover.Relation, cover.Age,
		cover.CoverAmount, cover.MonthlyPremium).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListCovers возвращает всех иждивенцев пользователя.
func (s *Storage) ListCovers(ctx context.Context, userUID string) ([]*models.ExtendedCover, error) {
	const op = "storage.ListCovers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, name, relation, age, cover_amount, monthly_premium, created_at
			  FROM covers
			  WHERE user_uid = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExtendedCover
	for rows.Next() {
		var item models.ExtendedCover
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Name, &item.Relation,
			&item.Age, &item.CoverAmount, &item.MonthlyPremium, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateCover обновляет запись иждивенца пользователя и возвращает
// количество изменённых строк. Чужие записи не видны по условию user_uid.
func (s *Storage) UpdateCover(ctx context.Context, cover models.ExtendedCover) (int, error) {
	const op = "storage.UpdateCover"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE covers
			  SET name = $1, relation = $2, age = $3, cover_amount = $4, monthly_premium = $5
			  WHERE id = $6 AND user_uid = $7`
	result, err := s.DB.ExecContext(ctx, query,
		cover.Name, cover.Relation, cover.Age, cover.CoverAmount,
		cover.MonthlyPremium, cover.ID, cover.UserUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RemoveCover удаляет запись иждивенца и возвращает количество удалённых строк.
func (s *Storage) RemoveCover(ctx context.Context, id int, userUID string) (int, error) {
	const op = "storage.RemoveCover"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM covers WHERE id = $1 AND user_uid = $2`, id, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
