package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

// ApplyPayment в одной транзакции записывает платёж в журнал и применяет fn
// к заблокированной учётной записи. Повторная доставка платежа с тем же
// ChargeID ничего не меняет: applied == false, возвращается текущее состояние.
func (s *Storage) ApplyPayment(ctx context.Context, payment models.Payment, fn func(acc *models.Account) error) (acc *models.Account, applied bool, err error) {
	const op = "storage.ApplyPayment"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	acc, err = lockAccount(ctx, tx, payment.ExternalID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO payments (account_id, plan_id, charge_id, amount, currency)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (charge_id) DO NOTHING
			  RETURNING id`
	var paymentID int64
	err = tx.QueryRowContext(ctx, query,
		acc.ID, payment.PlanID, payment.ChargeID, payment.Amount, payment.Currency).Scan(&paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return acc, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: insert payment: %w", op, err)
	}

	if err := fn(acc); err != nil {
		return nil, false, err
	}
	if err := saveAccount(ctx, tx, acc); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return acc, true, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, externalID int64) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT p.id, u.user_id, p.plan_id, p.charge_id, p.amount, p.currency, p.created_at
			  FROM payments p
			  JOIN users u ON u.id = p.account_id
			  WHERE u.user_id = $1
			  ORDER BY p.created_at DESC, p.id DESC`
	rows, err := s.DB.QueryContext(ctx, query, externalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.PlanID, &p.ChargeID, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
