// Package purchase создаёт платежи за продукты каталога и применяет их подтверждения.
//
// Подтверждение идемпотентно: платёж начисляется ровно одной записью PURCHASE,
// повторы и параллельные вызовы возвращают тот же результат. Суммы и состав
// продукта берутся только из каталога, данные клиента не используются.
// Каждый оплаченный период подписки приходит отдельным платежом и проходит тот же путь.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/credit-ledger/internal/services/slots"
	"github.com/magabrotheeeer/credit-ledger/internal/services/transactionlog"
)

// компенсация переживает отмену запроса
const compensationTimeout = time.Minute

// reasonAlreadyLifetime причина возврата второго лайфтайм-платежа.
// По ней повтор подтверждения отличает этот возврат от возврата из-за нехватки слотов.
const reasonAlreadyLifetime = "account already holds a lifetime plan"

// Gateway платёжный шлюз.
type Gateway interface {
	CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest, idempotenceKey string) (*paymentprovider.Payment, error)
	RetrievePayment(ctx context.Context, paymentID string) (*paymentprovider.Payment, error)
	ReturnURL() string
}

// Ledger начисления и чтение аккаунтов.
type Ledger interface {
	Credit(ctx context.Context, req ledger.CreditRequest) (int64, error)
	Account(ctx context.Context, accountID string) (*models.Account, error)
}

// Journal поиск записей по внешней ссылке и отдельные записи без движения баланса.
type Journal interface {
	FindByExternalRef(ctx context.Context, externalRef string, kind models.EntryKind) (*models.TransactionEntry, error)
	Record(ctx context.Context, entry models.TransactionEntry) (models.TransactionEntry, error)
}

// Allocator распределитель лайфтайм-слотов.
type Allocator interface {
	Precheck(ctx context.Context, tierID string) error
	Admit(ctx context.Context, tierID, paymentRef string, settled bool) (slots.Decision, error)
}

// Compensator возвраты платежей.
type Compensator interface {
	Compensate(ctx context.Context, paymentRef, accountID, reason string) error
	Lookup(ctx context.Context, paymentRef string) (*models.RefundAttempt, error)
}

// Referrals отметка о выданной реферальной награде.
type Referrals interface {
	MarkReferralRewarded(ctx context.Context, accountID string) (bool, error)
}

// Plans снятие тарифа подписки.
type Plans interface {
	ClearPlan(ctx context.Context, accountID string) (bool, error)
}

// Notifier публикация событий.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// Service сервис покупок.
type Service struct {
	gateway     Gateway
	ledger      Ledger
	journal     Journal
	allocator   Allocator
	compensator Compensator
	referrals   Referrals
	plans       Plans
	notifier    Notifier
	catalog     *catalog.Catalog
	log         *slog.Logger
}

// Deps зависимости сервиса покупок.
type Deps struct {
	Gateway     Gateway
	Ledger      Ledger
	Journal     Journal
	Allocator   Allocator
	Compensator Compensator
	Referrals   Referrals
	Plans       Plans
	Notifier    Notifier
	Catalog     *catalog.Catalog
}

// New создаёт сервис покупок.
func New(log *slog.Logger, d Deps) *Service {
	return &Service{
		gateway:     d.Gateway,
		ledger:      d.Ledger,
		journal:     d.Journal,
		allocator:   d.Allocator,
		compensator: d.Compensator,
		referrals:   d.Referrals,
		plans:       d.Plans,
		notifier:    d.Notifier,
		catalog:     d.Catalog,
		log:         log,
	}
}

// Checkout создаёт в шлюзе платёж за продукт productKey.
// Для лайфтайм-продуктов до создания платежа проверяются наличие слотов
// и отсутствие у аккаунта действующего лайфтайма.
func (s *Service) Checkout(ctx context.Context, accountID, productKey string) (*models.Checkout, error) {
	const op = "purchase.Checkout"
	log := s.log.With(slog.String("op", op), slog.String("account_id", accountID), slog.String("product", productKey))

	product, err := s.catalog.Product(productKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	acc, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if product.Lifetime() {
		if acc.IsLifetimeHolder {
			return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyLifetime)
		}
		if err := s.allocator.Precheck(ctx, product.PoolID()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	req := paymentprovider.CreatePaymentRequest{
		Amount:  paymentprovider.NewAmount(product.Price, product.Currency),
		Capture: true,
		Confirmation: &paymentprovider.Confirmation{
			Type:      "redirect",
			ReturnURL: s.gateway.ReturnURL(),
		},
		Description: product.Name,
		Metadata: map[string]string{
			paymentprovider.MetaAccountID: accountID,
			paymentprovider.MetaProduct:   product.Key,
			paymentprovider.MetaKind:      string(product.Kind),
			paymentprovider.MetaCredits:   strconv.FormatInt(product.Credits, 10),
		},
		SavePaymentMethod: product.Subscription(),
	}
	p, err := s.gateway.CreatePayment(ctx, req, uuid.NewString())
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &models.Checkout{
		PaymentRef: p.ID,
		Product:    product.Key,
		Price:      product.Price.StringFixed(2),
		Currency:   product.Currency,
		Credits:    product.Credits,
	}
	if p.Confirmation != nil {
		out.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	log.Info("payment created", slog.String("payment_ref", p.ID))
	return out, nil
}

// Confirm применяет проведённый платёж paymentRef к аккаунту claimedAccountID.
// Таймаут шлюза возвращает ErrGatewayUnavailable и не меняет состояние, вызов можно повторить.
func (s *Service) Confirm(ctx context.Context, paymentRef, claimedAccountID string) (*models.PurchaseResult, error) {
	const op = "purchase.Confirm"

	p, err := s.gateway.RetrievePayment(ctx, paymentRef)
	if err != nil {
		metrics.PurchaseConfirmations.WithLabelValues(confirmOutcome(err)).Inc()
		s.log.Warn("failed to retrieve payment", slog.String("op", op), slog.String("payment_ref", paymentRef), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.apply(ctx, p, claimedAccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ConfirmFromGateway применяет платёж к аккаунту из его metadata.
// Используется обработчиком вебхука шлюза.
func (s *Service) ConfirmFromGateway(ctx context.Context, paymentRef string) (*models.PurchaseResult, error) {
	const op = "purchase.ConfirmFromGateway"

	p, err := s.gateway.RetrievePayment(ctx, paymentRef)
	if err != nil {
		metrics.PurchaseConfirmations.WithLabelValues(confirmOutcome(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.apply(ctx, p, p.Metadata[paymentprovider.MetaAccountID])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *Service) apply(ctx context.Context, p *paymentprovider.Payment, claimedAccountID string) (res *models.PurchaseResult, err error) {
	log := s.log.With(slog.String("payment_ref", p.ID), slog.String("account_id", claimedAccountID))
	replayed := false
	defer func() {
		outcome := confirmOutcome(err)
		if err == nil && replayed {
			outcome = "replayed"
		}
		metrics.PurchaseConfirmations.WithLabelValues(outcome).Inc()
	}()

	if !p.Settled() {
		log.Info("payment not settled", slog.String("status", p.Status))
		return nil, models.ErrPaymentNotSettled
	}
	if owner := p.Metadata[paymentprovider.MetaAccountID]; owner == "" || owner != claimedAccountID {
		log.Warn("payment account mismatch", slog.String("owner", owner))
		return nil, models.ErrAccountMismatch
	}

	if entry, err := s.journal.FindByExternalRef(ctx, p.ID, models.KindPurchase); err != nil {
		return nil, err
	} else if entry != nil {
		replayed = true
		return s.result(ctx, entry)
	}
	if r, err := s.compensator.Lookup(ctx, p.ID); err != nil {
		return nil, err
	} else if r != nil {
		if r.Reason == reasonAlreadyLifetime {
			return nil, models.ErrAlreadyLifetime
		}
		return nil, models.ErrSoldOutRefunded
	}

	product, err := s.catalog.Product(p.Metadata[paymentprovider.MetaProduct])
	if err != nil {
		log.Error("payment references unknown product", slog.String("product", p.Metadata[paymentprovider.MetaProduct]))
		return nil, err
	}
	paid, err := p.Amount.Decimal()
	if err != nil || !paid.Equal(product.Price) || p.Amount.Currency != product.Currency {
		log.Error("paid amount does not match catalog price",
			slog.String("paid", p.Amount.Value+" "+p.Amount.Currency),
			sl.Money("price", product.Price, product.Currency))
		return nil, models.ErrAmountMismatch
	}

	acc, err := s.ledger.Account(ctx, claimedAccountID)
	if err != nil {
		return nil, err
	}

	req := ledger.CreditRequest{
		AccountID:   claimedAccountID,
		Amount:      product.Credits,
		Kind:        models.KindPurchase,
		ExternalRef: p.ID,
		Description: "purchase: " + product.Name,
		MoneyAmount: &paid,
		Effect:      models.CreditEffect{Spend: paid},
	}

	if product.Lifetime() {
		if acc.IsLifetimeHolder && (acc.LifetimePaymentRef == nil || *acc.LifetimePaymentRef != p.ID) {
			s.compensate(ctx, log, acc, p.ID, reasonAlreadyLifetime)
			return nil, models.ErrAlreadyLifetime
		}
		d, err := s.allocator.Admit(ctx, product.PoolID(), p.ID, true)
		if err != nil {
			return nil, err
		}
		if d.NeedsCompensation() {
			s.compensate(ctx, log, acc, p.ID, "sold out: "+d.FullPool)
			return nil, models.ErrSoldOutRefunded
		}
		req.Effect.UpgradeTier = product.BasePlan
		req.Effect.Lifetime = true
	}
	if product.Subscription() {
		req.Description = "plan period: " + product.Name
		req.Effect.UpgradeTier = product.BasePlan
		req.Effect.Plan = true
	}

	if _, err := s.ledger.Credit(ctx, req); err != nil && !errors.Is(err, models.ErrDuplicate) {
		log.Error("failed to credit purchase", sl.Err(err))
		return nil, err
	} else if err != nil {
		replayed = true
	}

	entry, err := s.journal.FindByExternalRef(ctx, p.ID, models.KindPurchase)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("purchase entry for %s vanished", p.ID)
	}
	res, err = s.result(ctx, entry)
	if err != nil {
		return nil, err
	}
	if replayed {
		return res, nil
	}

	log.Info("purchase confirmed", slog.String("product", product.Key), slog.Int64("credits", res.Credits))
	s.notifier.Notify(ctx, models.Event{
		Type:       models.EventPurchaseConfirmed,
		AccountID:  acc.ID,
		Email:      acc.Email,
		PaymentRef: p.ID,
		Credits:    res.Credits,
		Balance:    res.Balance,
		Tier:       res.Tier,
	})
	s.rewardReferrer(ctx, log, acc)
	return res, nil
}

// CancelPlan снимает тариф подписки после её отмены в шлюзе.
// Баланс не меняется: начисленные за оплаченные периоды кредиты остаются.
// Отмена фиксируется записью ADJUSTMENT с нулевой суммой, повтор по subscriptionRef ничего не меняет.
func (s *Service) CancelPlan(ctx context.Context, accountID, subscriptionRef string) (*models.Account, error) {
	const op = "purchase.CancelPlan"
	log := s.log.With(slog.String("op", op), slog.String("account_id", accountID), slog.String("subscription_ref", subscriptionRef))

	if accountID == "" || subscriptionRef == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	cleared, err := s.plans.ClearPlan(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := transactionlog.NewEntry(accountID, 0, models.KindAdjustment, "cancel:"+subscriptionRef, "plan cancelled")
	if _, err := s.journal.Record(ctx, entry); err != nil && !errors.Is(err, models.ErrDuplicate) {
		log.Error("failed to record plan cancellation", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cleared {
		log.Info("plan cancelled", slog.String("tier", string(acc.Tier)))
	}
	return acc, nil
}

// result строит ответ по сохранённой записи, поэтому повторы совпадают с первым ответом.
func (s *Service) result(ctx context.Context, entry *models.TransactionEntry) (*models.PurchaseResult, error) {
	acc, err := s.ledger.Account(ctx, entry.AccountID)
	if err != nil {
		return nil, err
	}
	ref := ""
	if entry.ExternalRef != nil {
		ref = *entry.ExternalRef
	}
	return &models.PurchaseResult{
		PaymentRef: ref,
		Credits:    entry.Amount,
		Balance:    entry.BalanceAfter,
		Tier:       acc.Tier,
		Lifetime:   acc.LifetimePaymentRef != nil && *acc.LifetimePaymentRef == ref,
	}, nil
}

func (s *Service) compensate(ctx context.Context, log *slog.Logger, acc *models.Account, paymentRef, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.compensator.Compensate(cctx, paymentRef, acc.ID, reason); err != nil {
		// запись журнала остаётся FAILED и будет повторена воркером возвратов
		log.Error("compensation incomplete", sl.Err(err))
	}
	s.notifier.Notify(cctx, models.Event{
		Type:       models.EventPurchaseRefunded,
		AccountID:  acc.ID,
		Email:      acc.Email,
		PaymentRef: paymentRef,
		Reason:     reason,
	})
}

// rewardReferrer начисляет пригласившему бонус за первую покупку аккаунта.
func (s *Service) rewardReferrer(ctx context.Context, log *slog.Logger, acc *models.Account) {
	reward := s.catalog.ReferralReward()
	if acc.ReferredBy == nil || acc.ReferralRewarded || reward <= 0 {
		return
	}
	referrer := *acc.ReferredBy

	balance, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		AccountID:   referrer,
		Amount:      reward,
		Kind:        models.KindBonus,
		ExternalRef: "referral:" + acc.ID,
		Description: "referral reward",
	})
	switch {
	case errors.Is(err, models.ErrDuplicate):
	case err != nil:
		log.Error("failed to reward referrer", slog.String("referrer", referrer), sl.Err(err))
		return
	default:
		if ref, err := s.ledger.Account(ctx, referrer); err == nil {
			s.notifier.Notify(ctx, models.Event{
				Type:      models.EventCreditsGranted,
				AccountID: referrer,
				Email:     ref.Email,
				Credits:   reward,
				Balance:   balance,
				Reason:    "referral",
			})
		}
	}

	if _, err := s.referrals.MarkReferralRewarded(ctx, acc.ID); err != nil {
		log.Error("failed to mark referral rewarded", sl.Err(err))
	}
}

func confirmOutcome(err error) string {
	switch {
	case err == nil:
		return "credited"
	case errors.Is(err, models.ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, models.ErrPaymentNotSettled):
		return "not_settled"
	case errors.Is(err, models.ErrAccountMismatch):
		return "account_mismatch"
	case errors.Is(err, models.ErrSoldOutRefunded):
		return "sold_out_refunded"
	case errors.Is(err, models.ErrAlreadyLifetime):
		return "already_lifetime"
	case errors.Is(err, models.ErrAmountMismatch):
		return "amount_mismatch"
	}
	return "error"
}
