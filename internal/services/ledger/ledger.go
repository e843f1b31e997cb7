// Package ledger атомарно списывает и начисляет кредиты.
//
// Баланс меняется только здесь. Каждое изменение баланса и соответствующая
// запись журнала фиксируются в одной единице работы хранилища; сериализация
// обеспечивается условным обновлением строки аккаунта, без блокировок в процессе.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/transactionlog"
)

// Repository операции хранилища, которыми пользуется журнал кредитов.
type Repository interface {
	CreateAccount(ctx context.Context, acc models.Account, bonus *models.TransactionEntry) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	DebitAccount(ctx context.Context, entry models.TransactionEntry) (int64, error)
	CreditAccount(ctx context.Context, entry models.TransactionEntry, effect models.CreditEffect) (int64, error)
}

// Journal чтение журнала транзакций.
type Journal interface {
	Get(ctx context.Context, id string) (*models.TransactionEntry, error)
	List(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error)
}

// CreditRequest параметры начисления.
type CreditRequest struct {
	AccountID   string
	Amount      int64
	Kind        models.EntryKind
	ExternalRef string
	Description string
	MoneyAmount *decimal.Decimal
	Effect      models.CreditEffect
}

// Ledger журнал кредитов.
type Ledger struct {
	repo        Repository
	journal     Journal
	signupBonus int64
	log         *slog.Logger
}

// New создаёт журнал кредитов. signupBonus начисляется при открытии аккаунта.
func New(log *slog.Logger, repo Repository, journal Journal, signupBonus int64) *Ledger {
	return &Ledger{
		repo:        repo,
		journal:     journal,
		signupBonus: signupBonus,
		log:         log,
	}
}

// Debit списывает amount кредитов и возвращает новый баланс.
// При нехватке средств возвращает ErrInsufficientCredits, запись не создаётся.
// Ошибка списания не повторяется.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int64, kind models.EntryKind) (int64, error) {
	e, err := l.Reserve(ctx, accountID, amount, kind, "")
	if err != nil {
		return 0, err
	}
	return e.BalanceAfter, nil
}

// Reserve списывает кредиты и возвращает созданную запись.
// Идентификатор записи позже передаётся в RefundDebit.
func (l *Ledger) Reserve(ctx context.Context, accountID string, amount int64, kind models.EntryKind, description string) (models.TransactionEntry, error) {
	const op = "ledger.Debit"
	log := l.log.With(slog.String("op", op), slog.String("account_id", accountID))

	if amount <= 0 {
		return models.TransactionEntry{}, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	if kind == "" {
		kind = models.KindGeneration
	}
	if description == "" {
		description = fmt.Sprintf("%s: -%d credits", kind, amount)
	}

	entry := transactionlog.NewEntry(accountID, -amount, kind, "", description)
	balance, err := l.repo.DebitAccount(ctx, entry)
	metrics.LedgerOperations.WithLabelValues("debit", outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, models.ErrInsufficientCredits) {
			log.Info("debit rejected: insufficient credits", slog.Int64("amount", amount))
		} else if !errors.Is(err, models.ErrAccountNotFound) {
			log.Error("debit failed", sl.Err(err))
		}
		return models.TransactionEntry{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.CreditsMoved.WithLabelValues(string(kind)).Add(float64(amount))

	entry.BalanceAfter = balance
	log.Debug("credits debited", slog.Int64("amount", amount), slog.Int64("balance", balance))
	return entry, nil
}

// Credit начисляет кредиты и применяет побочные эффекты req.Effect.
// Если запись с (ExternalRef, Kind) уже есть, возвращает ErrDuplicate без изменений.
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (int64, error) {
	const op = "ledger.Credit"
	log := l.log.With(slog.String("op", op), slog.String("account_id", req.AccountID))

	if req.Amount < 0 || (req.Amount == 0 && !req.Effect.Lifetime) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	if !req.Kind.Valid() || req.Kind == models.KindGeneration {
		return 0, fmt.Errorf("%s: kind %q cannot credit", op, req.Kind)
	}
	if req.Effect.Lifetime && req.ExternalRef == "" {
		return 0, fmt.Errorf("%s: lifetime grant requires an external ref", op)
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("%s: +%d credits", req.Kind, req.Amount)
	}

	entry := transactionlog.NewEntry(req.AccountID, req.Amount, req.Kind, req.ExternalRef, req.Description)
	entry.MoneyAmount = req.MoneyAmount

	balance, err := l.repo.CreditAccount(ctx, entry, req.Effect)
	metrics.LedgerOperations.WithLabelValues("credit", outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			log.Info("credit already applied", slog.String("external_ref", req.ExternalRef), slog.String("kind", string(req.Kind)))
		} else if !errors.Is(err, models.ErrAccountNotFound) {
			log.Error("credit failed", sl.Err(err))
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.CreditsMoved.WithLabelValues(string(req.Kind)).Add(float64(req.Amount))

	log.Info("credits granted",
		slog.Int64("amount", req.Amount),
		slog.String("kind", string(req.Kind)),
		slog.Int64("balance", balance))
	return balance, nil
}

// Refund безусловно возвращает amount кредитов записью REFUND.
func (l *Ledger) Refund(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	const op = "ledger.Refund"
	balance, err := l.Credit(ctx, CreditRequest{
		AccountID:   accountID,
		Amount:      amount,
		Kind:        models.KindRefund,
		Description: refundDescription(reason),
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// RefundDebit возвращает кредиты, списанные записью debitID.
// Возврат одной и той же записи применяется один раз, повтор даёт ErrDuplicate.
func (l *Ledger) RefundDebit(ctx context.Context, accountID, debitID, reason string) (int64, error) {
	const op = "ledger.RefundDebit"

	if _, err := uuid.Parse(debitID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	debit, err := l.journal.Get(ctx, debitID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if debit.AccountID != accountID || debit.Amount >= 0 {
		return 0, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	balance, err := l.Credit(ctx, CreditRequest{
		AccountID:   accountID,
		Amount:      -debit.Amount,
		Kind:        models.KindRefund,
		ExternalRef: DebitRef(debitID),
		Description: refundDescription(reason),
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// Charge списывает cost, выполняет дорогую операцию и при её ошибке
// возвращает списанное. Возвращается ошибка операции.
func (l *Ledger) Charge(ctx context.Context, accountID string, cost int64, operation func(ctx context.Context) error) error {
	const op = "ledger.Charge"
	log := l.log.With(slog.String("op", op), slog.String("account_id", accountID))

	debit, err := l.Reserve(ctx, accountID, cost, models.KindGeneration, "")
	if err != nil {
		return err
	}

	opErr := operation(ctx)
	if opErr == nil {
		return nil
	}

	// возврат не должен зависеть от отмены запроса, оборвавшей операцию
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := l.RefundDebit(refundCtx, accountID, debit.ID, "operation failed: "+opErr.Error()); err != nil {
		log.Error("failed to refund charge", slog.String("debit_id", debit.ID), sl.Err(err))
		return errors.Join(opErr, fmt.Errorf("%s: refund: %w", op, err))
	}
	log.Info("charge refunded after failed operation", slog.Int64("amount", cost))
	return opErr
}

// OpenAccount открывает аккаунт со стартовым бонусом.
func (l *Ledger) OpenAccount(ctx context.Context, accountID, email, referredBy string) (*models.Account, error) {
	const op = "ledger.OpenAccount"
	log := l.log.With(slog.String("op", op), slog.String("account_id", accountID))

	if referredBy == accountID {
		referredBy = ""
	}
	now := time.Now().UTC()
	acc := models.Account{
		ID:         accountID,
		Email:      email,
		Balance:    l.signupBonus,
		Tier:       models.TierFree,
		ReferredBy: models.Ref(referredBy),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var bonus *models.TransactionEntry
	if l.signupBonus > 0 {
		e := transactionlog.NewEntry(accountID, l.signupBonus, models.KindBonus, "signup:"+accountID, "signup bonus")
		e.CreatedAt = now
		bonus = &e
	}

	err := l.repo.CreateAccount(ctx, acc, bonus)
	metrics.LedgerOperations.WithLabelValues("open_account", outcome(err)).Inc()
	if err != nil {
		if !errors.Is(err, models.ErrAccountExists) {
			log.Error("failed to open account", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account opened", slog.Int64("balance", acc.Balance))
	return &acc, nil
}

// Account возвращает аккаунт.
func (l *Ledger) Account(ctx context.Context, accountID string) (*models.Account, error) {
	const op = "ledger.Account"
	acc, err := l.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// History возвращает последние записи журнала аккаунта.
func (l *Ledger) History(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error) {
	const op = "ledger.History"
	entries, err := l.journal.List(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// DebitRef внешняя ссылка возврата конкретного списания.
func DebitRef(debitID string) string {
	return "debit:" + debitID
}

func refundDescription(reason string) string {
	if reason == "" {
		return "refund"
	}
	return "refund: " + reason
}

// outcome не считает ожидаемые отказы ошибками хранилища.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, models.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrAccountExists):
		return "rejected"
	}
	return metrics.Outcome(err)
}
