package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

const subscriptionColumns = `s.id, s.user_uid, s.plan_id, p.name, s.status,
		s.current_period_start, s.current_period_end, s.cancel_at_period_end,
		s.canceled_at, s.external_id, s.reference, s.created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.PlanID, &sub.PlanName, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CanceledAt, &sub.ExternalID, &sub.Reference, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCurrentSubscription возвращает текущую подписку пользователя —
// самую свежую по created_at. Отсутствие подписки не является ошибкой:
// возвращается (nil, nil). Уникальность на уровне БД не гарантируется,
// вызывающие полагаются на сортировку.
func (s *Storage) GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetCurrentSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions s
			  JOIN plans p ON p.id = s.plan_id
			  WHERE s.user_uid = $1
			  ORDER BY s.created_at DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userUID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindSubscriptionByReference находит подписку по внешней ссылке через
// таблицу gateway_refs. Неизвестная ссылка — (nil, nil), не ошибка.
func (s *Storage) FindSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	const op = "storage.FindSubscriptionByReference"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM gateway_refs r
			  JOIN subscriptions s ON s.id = r.subscription_id
			  JOIN plans p ON p.id = s.plan_id
			  WHERE r.reference = $1`
	row := s.DB.QueryRowContext(ctx, query, reference)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindSubscriptionByExternalID находит подписку по идентификатору на стороне
// шлюза. Отсутствие — (nil, nil), не ошибка.
func (s *Storage) FindSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	const op = "storage.FindSubscriptionByExternalID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions s
			  JOIN plans p ON p.id = s.plan_id
			  WHERE s.external_id = $1
			  ORDER BY s.created_at DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, externalID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// CreateSubscriptionWithInvoice атомарно создаёт подписку, запись корреляции
// gateway_refs, сопутствующий счёт и, для редирект-шлюза, транзакцию аудита.
// Либо фиксируются все строки, либо ни одной.
func (s *Storage) CreateSubscriptionWithInvoice(ctx context.Context, sub models.Subscription,
	inv models.Invoice, txn *models.Transaction) (int, error) {
	const op = "storage.CreateSubscriptionWithInvoice"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var subID int
	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO subscriptions (user_uid, plan_id, status, current_period_start,
				 current_period_end, external_id, reference)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			sub.UserUID, sub.PlanID, sub.Status, sub.CurrentPeriodStart,
			sub.CurrentPeriodEnd, sub.ExternalID, sub.Reference).Scan(&subID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gateway_refs (reference, subscription_id) VALUES ($1, $2)`,
			sub.Reference, subID); err != nil {
			return err
		}

		inv.SubscriptionID = &subID
		invoiceID, err := insertInvoice(ctx, tx, inv)
		if err != nil {
			return err
		}

		if txn != nil {
			txn.InvoiceID = invoiceID
			if _, err := insertTransaction(ctx, tx, *txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return subID, nil
}

// ChangeSubscriptionPlan атомарно переводит подписку на новый тариф и,
// если доплата положительная, создаёт счёт (и транзакцию) на разницу.
func (s *Storage) ChangeSubscriptionPlan(ctx context.Context, subID, newPlanID int,
	inv *models.Invoice, txn *models.Transaction) error {
	const op = "storage.ChangeSubscriptionPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET plan_id = $1 WHERE id = $2`, newPlanID, subID); err != nil {
			return err
		}

		if inv == nil {
			return nil
		}
		prorated := *inv
		prorated.SubscriptionID = &subID
		invoiceID, err := insertInvoice(ctx, tx, prorated)
		if err != nil {
			return err
		}
		if txn != nil {
			txn.InvoiceID = invoiceID
			if _, err := insertTransaction(ctx, tx, *txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkCancelAtPeriodEnd помечает подписку к завершению в конце периода.
// Статус и границы периода не меняются: доступ сохраняется до конца периода.
func (s *Storage) MarkCancelAtPeriodEnd(ctx context.Context, subID int) (int, error) {
	const op = "storage.MarkCancelAtPeriodEnd"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET cancel_at_period_end = TRUE WHERE id = $1`, subID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateSubscriptionStatus зеркалирует статус подписки из события шлюза.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, subID int,
	status models.SubscriptionStatus, canceledAt *time.Time) error {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1, canceled_at = COALESCE($2, canceled_at) WHERE id = $3`,
		status, canceledAt, subID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConfirmPayment атомарно применяет подтверждённый вебхуком платёж:
// подписка становится активной, добавляются оплаченный счёт и транзакция.
func (s *Storage) ConfirmPayment(ctx context.Context, subID int,
	inv models.Invoice, txn models.Transaction) error {
	const op = "storage.ConfirmPayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = $1 WHERE id = $2`,
			models.StatusActive, subID); err != nil {
			return err
		}

		// Непогашенный счёт подписки закрывается; если его нет — создаётся новый.
		var invoiceID int
		err := tx.QueryRowContext(ctx,
			`UPDATE invoices SET status = $1, paid_at = $2
			 WHERE id = (SELECT id FROM invoices
						 WHERE subscription_id = $3 AND status = $4
						 ORDER BY created_at DESC LIMIT 1)
			 RETURNING id`,
			models.InvoicePaid, inv.PaidAt, subID, models.InvoicePending).Scan(&invoiceID)
		if errors.Is(err, sql.ErrNoRows) {
			paid := inv
			paid.SubscriptionID = &subID
			paid.Status = models.InvoicePaid
			invoiceID, err = insertInvoice(ctx, tx, paid)
		}
		if err != nil {
			return err
		}

		txn.InvoiceID = invoiceID
		_, err = insertTransaction(ctx, tx, txn)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountActiveSubscriptions возвращает количество активных подписчиков.
func (s *Storage) CountActiveSubscriptions(ctx context.Context) (int, error) {
	const op = "storage.CountActiveSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE status = $1`,
		models.StatusActive).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
