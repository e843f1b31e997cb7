package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const refundColumns = `payment_ref, account_id, reason, status, attempts, last_error, created_at, updated_at`

func scanRefund(row rowScanner) (*models.RefundAttempt, error) {
	var (
		r      models.RefundAttempt
		status string
	)
	if err := row.Scan(&r.PaymentRef, &r.AccountID, &r.Reason, &status, &r.Attempts, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RefundStatus(status)
	return &r, nil
}

// CreateRefund журналирует возврат в статусе PENDING.
// Возвращает false, если запись для платежа уже существует.
func (s *Storage) CreateRefund(ctx context.Context, attempt models.RefundAttempt) (bool, error) {
	const op = "storage.CreateRefund"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO refund_attempts (payment_ref, account_id, reason, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_ref) DO NOTHING`,
		attempt.PaymentRef, attempt.AccountID, attempt.Reason, string(models.RefundPending))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// GetRefund возвращает запись журнала возвратов. ErrNotFound, если её нет.
func (s *Storage) GetRefund(ctx context.Context, paymentRef string) (*models.RefundAttempt, error) {
	const op = "storage.GetRefund"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	r, err := scanRefund(s.DB.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refund_attempts WHERE payment_ref = $1`, paymentRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// UpdateRefund фиксирует исход серии попыток: новый статус, прибавку к счётчику и последнюю ошибку.
func (s *Storage) UpdateRefund(ctx context.Context, paymentRef string, status models.RefundStatus, attempts int, lastErr string) error {
	const op = "storage.UpdateRefund"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE refund_attempts
		SET status = $2, attempts = attempts + $3, last_error = $4, updated_at = NOW()
		WHERE payment_ref = $1`,
		paymentRef, string(status), attempts, lastErr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// ListUnsettledRefunds возвращает возвраты в статусах PENDING и FAILED.
// Первыми идут записи с наименьшим числом попыток, исчерпавшие лимит оказываются в хвосте
// и не вытесняют из выборки свежие неудачи.
func (s *Storage) ListUnsettledRefunds(ctx context.Context, limit int) ([]models.RefundAttempt, error) {
	const op = "storage.ListUnsettledRefunds"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+refundColumns+` FROM refund_attempts WHERE status <> $1 ORDER BY attempts, created_at LIMIT $2`,
		string(models.RefundSucceeded), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RefundAttempt
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
