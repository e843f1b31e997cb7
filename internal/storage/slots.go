package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// UpsertPool создаёт пул или меняет его ёмкость; claimed не трогается.
func (s *Storage) UpsertPool(ctx context.Context, tierID string, capacity int) error {
	const op = "storage.UpsertPool"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO slot_pools (tier_id, capacity) VALUES ($1, $2)
		ON CONFLICT (tier_id) DO UPDATE SET capacity = EXCLUDED.capacity, updated_at = NOW()`,
		tierID, capacity)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClaimSlot занимает слот пула poolID для платежа paymentRef.
// Повторный вызов для того же платежа возвращает true без второго списания.
// false означает, что пул заполнен.
func (s *Storage) ClaimSlot(ctx context.Context, poolID, paymentRef string) (bool, error) {
	const op = "storage.ClaimSlot"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	var claimed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO slot_claims (pool_id, payment_ref) VALUES ($1, $2)
			ON CONFLICT (pool_id, payment_ref) DO NOTHING`,
			poolID, paymentRef)
		if isPgError(err, pgForeignKeyViolation) {
			return models.ErrPoolNotFound
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			claimed = true
			return nil
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE slot_pools SET claimed = claimed + 1, updated_at = NOW()
			WHERE tier_id = $1 AND claimed < capacity`, poolID)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			return errPoolFull
		}
		claimed = true
		return nil
	})
	if errors.Is(err, errPoolFull) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return claimed, nil
}

var errPoolFull = errors.New("pool full")

// ReleaseSlot освобождает слот, занятый платежом. Без заявки ничего не делает.
func (s *Storage) ReleaseSlot(ctx context.Context, poolID, paymentRef string) error {
	const op = "storage.ReleaseSlot"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM slot_claims WHERE pool_id = $1 AND payment_ref = $2`, poolID, paymentRef)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE slot_pools SET claimed = claimed - 1, updated_at = NOW()
			WHERE tier_id = $1 AND claimed > 0`, poolID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPool возвращает состояние пула.
func (s *Storage) GetPool(ctx context.Context, poolID string) (*models.SlotPool, error) {
	const op = "storage.GetPool"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	var p models.SlotPool
	err := s.DB.QueryRowContext(ctx,
		`SELECT tier_id, capacity, claimed FROM slot_pools WHERE tier_id = $1`, poolID).
		Scan(&p.TierID, &p.Capacity, &p.Claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrPoolNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// ListPools возвращает все пулы, упорядоченные по идентификатору.
func (s *Storage) ListPools(ctx context.Context) ([]models.SlotPool, error) {
	const op = "storage.ListPools"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT tier_id, capacity, claimed FROM slot_pools ORDER BY tier_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var pools []models.SlotPool
	for rows.Next() {
		var p models.SlotPool
		if err := rows.Scan(&p.TierID, &p.Capacity, &p.Claimed); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pools, nil
}
