package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const accountColumns = `id, email, balance, tier, COALESCE(plan_tier, ''), COALESCE(lifetime_tier, ''),
	is_lifetime_holder, lifetime_payment_ref, lifetime_spend, referred_by, referral_rewarded,
	login_streak, last_bonus_on, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		acc          models.Account
		tier         string
		planTier     string
		lifetimeTier string
		lifetimeRf   sql.NullString
		referredBy   sql.NullString
		lastBonus    sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Balance, &tier, &planTier, &lifetimeTier,
		&acc.IsLifetimeHolder, &lifetimeRf, &acc.LifetimeSpend, &referredBy, &acc.ReferralRewarded,
		&acc.LoginStreak, &lastBonus, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	acc.Tier = models.Tier(tier)
	acc.PlanTier = models.Tier(planTier)
	acc.LifetimeTier = models.Tier(lifetimeTier)
	if lifetimeRf.Valid {
		acc.LifetimePaymentRef = &lifetimeRf.String
	}
	if referredBy.Valid {
		acc.ReferredBy = &referredBy.String
	}
	if lastBonus.Valid {
		day := lastBonus.Time.UTC()
		acc.LastBonusOn = &day
	}
	return &acc, nil
}

// CreateAccount открывает аккаунт и, если передан bonus, записывает стартовое начисление.
func (s *Storage) CreateAccount(ctx context.Context, acc models.Account, bonus *models.TransactionEntry) error {
	const op = "storage.CreateAccount"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, email, balance, tier, referred_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			acc.ID, acc.Email, acc.Balance, string(acc.Tier), acc.ReferredBy, acc.CreatedAt)
		if err != nil {
			if isPgError(err, pgUniqueViolation) {
				return models.ErrAccountExists
			}
			return err
		}
		if bonus != nil {
			bonus.BalanceAfter = acc.Balance
			return insertEntry(ctx, tx, *bonus)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (s *Storage) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	const op = "storage.GetAccount"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	acc, err := scanAccount(s.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// DebitAccount атомарно уменьшает баланс на -entry.Amount и записывает entry.
// Если средств недостаточно, ничего не меняется и возвращается ErrInsufficientCredits.
func (s *Storage) DebitAccount(ctx context.Context, entry models.TransactionEntry) (int64, error) {
	const op = "storage.DebitAccount"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	amount := -entry.Amount

	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE accounts
			SET balance = balance - $2, updated_at = NOW()
			WHERE id = $1 AND balance >= $2
			RETURNING balance`,
			entry.AccountID, amount).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return accountMissingOr(ctx, tx, entry.AccountID, models.ErrInsufficientCredits)
		}
		if err != nil {
			return err
		}
		entry.BalanceAfter = balance
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// CreditAccount атомарно увеличивает баланс на entry.Amount, записывает entry
// и применяет effect. Повтор (ExternalRef, Kind) даёт ErrDuplicate без изменений.
func (s *Storage) CreditAccount(ctx context.Context, entry models.TransactionEntry, effect models.CreditEffect) (int64, error) {
	const op = "storage.CreditAccount"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	var lifetimeRef *string
	if effect.Lifetime {
		lifetimeRef = entry.ExternalRef
	}
	streak := 0
	var bonusDay sql.NullTime
	if effect.Streak != nil {
		streak = effect.Streak.Days
		bonusDay = sql.NullTime{Time: effect.Streak.On, Valid: true}
	}

	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// тариф выводится из подписки и лайфтайма, поэтому строку читаем под блокировкой
		var tiers models.Account
		if effect.UpgradeTier != "" {
			t, err := lockTiers(ctx, tx, entry.AccountID)
			if err != nil {
				return err
			}
			tiers = *t
			tiers.ApplyTier(effect)
		}

		err := tx.QueryRowContext(ctx, `
			UPDATE accounts
			SET balance = balance + $2,
				tier = CASE WHEN $3 THEN $4 ELSE tier END,
				plan_tier = CASE WHEN $3 THEN NULLIF($5::text, '') ELSE plan_tier END,
				lifetime_tier = CASE WHEN $3 THEN NULLIF($6::text, '') ELSE lifetime_tier END,
				is_lifetime_holder = is_lifetime_holder OR $7,
				lifetime_payment_ref = CASE WHEN $7 THEN $8 ELSE lifetime_payment_ref END,
				lifetime_spend = lifetime_spend + $9,
				login_streak = CASE WHEN $10::int > 0 THEN $10::int ELSE login_streak END,
				last_bonus_on = CASE WHEN $10::int > 0 THEN $11::date ELSE last_bonus_on END,
				updated_at = NOW()
			WHERE id = $1
			RETURNING balance`,
			entry.AccountID, entry.Amount,
			effect.UpgradeTier != "", string(tiers.Tier), string(tiers.PlanTier), string(tiers.LifetimeTier),
			effect.Lifetime, lifetimeRef, effect.Spend, streak, bonusDay).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		entry.BalanceAfter = balance
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

func lockTiers(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var (
		acc                  models.Account
		tier, plan, lifetime string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT tier, COALESCE(plan_tier, ''), COALESCE(lifetime_tier, '')
		FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&tier, &plan, &lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Tier, acc.PlanTier, acc.LifetimeTier = models.Tier(tier), models.Tier(plan), models.Tier(lifetime)
	return &acc, nil
}

// RevokeLifetime снимает лайфтайм, выданный платежом paymentRef.
// Тариф возвращается к тарифу подписки или FREE. Возвращает false, если такой выдачи не было.
func (s *Storage) RevokeLifetime(ctx context.Context, paymentRef string) (bool, error) {
	const op = "storage.RevokeLifetime"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE accounts
		SET is_lifetime_holder = FALSE, lifetime_payment_ref = NULL, lifetime_tier = NULL,
			tier = COALESCE(plan_tier, $2), updated_at = NOW()
		WHERE lifetime_payment_ref = $1`,
		paymentRef, string(models.TierFree))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ClearPlan снимает тариф подписки, оставляя тариф лайфтайма или FREE.
// Возвращает false, если подписки не было.
func (s *Storage) ClearPlan(ctx context.Context, accountID string) (bool, error) {
	const op = "storage.ClearPlan"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	var cleared bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET plan_tier = NULL, tier = COALESCE(lifetime_tier, $2), updated_at = NOW()
			WHERE id = $1 AND plan_tier IS NOT NULL`,
			accountID, string(models.TierFree))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return accountMissingOr(ctx, tx, accountID, nil)
		}
		cleared = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return cleared, nil
}

// MarkReferralRewarded отмечает, что за приглашение аккаунта уже выдана награда.
// Возвращает false, если отметка уже стояла.
func (s *Storage) MarkReferralRewarded(ctx context.Context, accountID string) (bool, error) {
	const op = "storage.MarkReferralRewarded"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE accounts SET referral_rewarded = TRUE, updated_at = NOW()
		WHERE id = $1 AND referral_rewarded = FALSE`, accountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func accountMissingOr(ctx context.Context, tx *sql.Tx, accountID string, otherwise error) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return models.ErrAccountNotFound
	}
	return otherwise
}

func nullableDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nowUTC(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
