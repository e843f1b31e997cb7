package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const entryColumns = `id, account_id, amount, kind, external_ref, description, money_amount, balance_after, created_at`

func scanEntry(row rowScanner) (*models.TransactionEntry, error) {
	var (
		e     models.TransactionEntry
		kind  string
		ref   sql.NullString
		money decimal.NullDecimal
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &kind, &ref, &e.Description, &money, &e.BalanceAfter, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = models.EntryKind(kind)
	if ref.Valid {
		e.ExternalRef = &ref.String
	}
	if money.Valid {
		e.MoneyAmount = &money.Decimal
	}
	return &e, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e models.TransactionEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, kind, external_ref, description, money_amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AccountID, e.Amount, string(e.Kind), e.ExternalRef, e.Description,
		nullableDecimal(e.MoneyAmount), e.BalanceAfter, nowUTC(e.CreatedAt))
	switch {
	case isPgError(err, pgUniqueViolation):
		return models.ErrDuplicate
	case isPgError(err, pgForeignKeyViolation):
		return models.ErrAccountNotFound
	}
	return err
}

// InsertEntry записывает отдельную запись журнала, не меняя баланс.
// BalanceAfter фиксируется по текущему балансу аккаунта.
func (s *Storage) InsertEntry(ctx context.Context, entry models.TransactionEntry) error {
	const op = "storage.InsertEntry"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, entry.AccountID).Scan(&entry.BalanceAfter)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindEntry ищет запись по внешней ссылке и типу. ErrNotFound, если записи нет.
func (s *Storage) FindEntry(ctx context.Context, externalRef string, kind models.EntryKind) (*models.TransactionEntry, error) {
	const op = "storage.FindEntry"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	e, err := scanEntry(s.DB.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM transactions WHERE external_ref = $1 AND kind = $2`,
		externalRef, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// GetEntry возвращает запись по идентификатору. ErrNotFound, если записи нет.
func (s *Storage) GetEntry(ctx context.Context, id string) (*models.TransactionEntry, error) {
	const op = "storage.GetEntry"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	e, err := scanEntry(s.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// ListEntries возвращает последние записи аккаунта, новые первыми.
func (s *Storage) ListEntries(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error) {
	const op = "storage.ListEntries"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM transactions WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.TransactionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}
