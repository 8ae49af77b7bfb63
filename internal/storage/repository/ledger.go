package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/coverplan/internal/models"
)

// rowQuerier объединяет *sql.DB и *sql.Tx: записи журнала пишутся и напрямую,
// и изнутри транзакций жизненного цикла подписки.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertInvoice(ctx context.Context, q rowQuerier, inv models.Invoice) (int, error) {
	var newID int
	err := q.QueryRowContext(ctx,
		`INSERT INTO invoices (user_uid, subscription_id, amount, currency, status, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		inv.UserUID, inv.SubscriptionID, inv.Amount, inv.Currency, inv.Status, inv.PaidAt).Scan(&newID)
	if err != nil {
		return 0, err
	}
	return newID, nil
}

func insertTransaction(ctx context.Context, q rowQuerier, txn models.Transaction) (int, error) {
	var newID int
	err := q.QueryRowContext(ctx,
		`INSERT INTO transactions (invoice_id, user_uid, gateway, external_id, status, raw_request, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		txn.InvoiceID, txn.UserUID, txn.Gateway, txn.ExternalID, txn.Status,
		txn.RawRequest, txn.RawResponse).Scan(&newID)
	if err != nil {
		return 0, err
	}
	return newID, nil
}

// CreateInvoice вставляет счёт и возвращает его ID. Записи только добавляются.
func (s *Storage) CreateInvoice(ctx context.Context, inv models.Invoice) (int, error) {
	const op = "storage.CreateInvoice"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	newID, err := insertInvoice(ctx, s.DB, inv)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// CreateTransaction вставляет запись аудита обращения к шлюзу.
func (s *Storage) CreateTransaction(ctx context.Context, txn models.Transaction) (int, error) {
	const op = "storage.CreateTransaction"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	newID, err := insertTransaction(ctx, s.DB, txn)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListInvoices возвращает счета пользователя, новые сверху.
func (s *Storage) ListInvoices(ctx context.Context, userUID string, limit, offset int) ([]*models.Invoice, error) {
	const op = "storage.ListInvoices"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, subscription_id, amount, currency, status, paid_at, created_at
			  FROM invoices
			  WHERE user_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Invoice
	for rows.Next() {
		var item models.Invoice
		if err := rows.Scan(&item.ID, &item.UserUID, &item.SubscriptionID, &item.Amount,
			&item.Currency, &item.Status, &item.PaidAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SumPaidInvoices считает суммарную выручку по оплаченным счетам.
func (s *Storage) SumPaidInvoices(ctx context.Context) (float64, error) {
	const op = "storage.SumPaidInvoices"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total float64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE status = $1`,
		models.InvoicePaid).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}
