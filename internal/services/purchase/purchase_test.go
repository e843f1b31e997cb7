package purchase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/credit-ledger/internal/services/refund"
	"github.com/magabrotheeeer/credit-ledger/internal/services/slots"
	"github.com/magabrotheeeer/credit-ledger/internal/services/transactionlog"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/memstore"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, req paymentprovider.CreatePaymentRequest, key string) (*paymentprovider.Payment, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Payment), args.Error(1)
}

func (m *MockGateway) RetrievePayment(ctx context.Context, id string) (*paymentprovider.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Payment), args.Error(1)
}

func (m *MockGateway) IssueRefund(ctx context.Context, id, reason string) (*paymentprovider.Refund, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Refund), args.Error(1)
}

func (m *MockGateway) ReturnURL() string {
	return "https://app.example.com/billing"
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ofType(t models.EventType) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	svc      *Service
	store    *memstore.Store
	ledger   *ledger.Ledger
	gateway  *MockGateway
	notifier *recordingNotifier
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Каталог по умолчанию для пакетов и два лайфтайм-тарифа: SOLO на 1 слот и TEAM на 3.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := newNoopLogger()
	store := memstore.New()
	cat, err := catalog.New(config.Catalog{
		SignupBonus:    5,
		ReferralReward: 10,
		LifetimeDeals: []config.LifetimeDeal{
			{Key: "solo", Name: "Solo Lifetime", BasePlan: "STARTER", Credits: 50, Price: "49", MaxSlots: 1},
			{Key: "team", Name: "Team Lifetime", BasePlan: "PRO", Credits: 150, Price: "99", MaxSlots: 3},
		},
	})
	require.NoError(t, err)

	journal := transactionlog.New(log, store)
	l := ledger.New(log, store, journal, cat.SignupBonus())
	alloc := slots.New(log, store, cat, nil, 0)
	require.NoError(t, alloc.Seed(context.Background()))

	gw := new(MockGateway)
	n := &recordingNotifier{}
	comp := refund.New(log, store, gw, n, config.RefundPolicy{
		InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 2, MaxAttempts: 2, MaxTotalAttempts: 4,
	})

	svc := New(log, Deps{
		Gateway:     gw,
		Ledger:      l,
		Journal:     journal,
		Allocator:   alloc,
		Compensator: comp,
		Referrals:   store,
		Plans:       store,
		Notifier:    n,
		Catalog:     cat,
	})
	return &harness{svc: svc, store: store, ledger: l, gateway: gw, notifier: n}
}

func (h *harness) open(t *testing.T, id, referredBy string) {
	t.Helper()
	_, err := h.ledger.OpenAccount(context.Background(), id, id+"@example.com", referredBy)
	require.NoError(t, err)
}

// payment регистрирует платёж в шлюзе.
func (h *harness) payment(ref, accountID, product, amount, status string) {
	h.gateway.On("RetrievePayment", mock.Anything, ref).Return(&paymentprovider.Payment{
		ID:     ref,
		Status: status,
		Paid:   status == paymentprovider.StatusSucceeded,
		Amount: paymentprovider.Amount{Value: amount, Currency: "GBP"},
		Metadata: map[string]string{
			paymentprovider.MetaAccountID: accountID,
			paymentprovider.MetaProduct:   product,
		},
	}, nil)
}

func (h *harness) purchases(t *testing.T, accountID string) []models.TransactionEntry {
	t.Helper()
	history, err := h.ledger.History(context.Background(), accountID, 100)
	require.NoError(t, err)
	var out []models.TransactionEntry
	for _, e := range history {
		if e.Kind == models.KindPurchase {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	acc, err := h.ledger.Account(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func TestConfirm_CreditPackTwiceReturnsSameResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "pack_75", "2.99", paymentprovider.StatusSucceeded)

	first, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.PurchaseResult{PaymentRef: "pay_1", Credits: 90, Balance: 95, Tier: models.TierFree}, first)

	second, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Len(t, h.purchases(t, "u1"), 1)
	assert.Equal(t, int64(95), h.balance(t, "u1"))
	assert.Len(t, h.notifier.ofType(models.EventPurchaseConfirmed), 1, "replay must not notify again")
}

func TestConfirm_ConcurrentConfirmsCreditOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "pack_75", "2.99", paymentprovider.StatusSucceeded)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*models.PurchaseResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.Confirm(ctx, "pay_1", "u1")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Len(t, h.purchases(t, "u1"), 1)
	assert.Equal(t, int64(95), h.balance(t, "u1"))
}

func TestConfirm_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		claimed string
		wantErr error
	}{
		{
			name:    "not settled",
			setup:   func(h *harness) { h.payment("pay_1", "u1", "pack_75", "2.99", paymentprovider.StatusPending) },
			claimed: "u1",
			wantErr: models.ErrPaymentNotSettled,
		},
		{
			name:    "other account",
			setup:   func(h *harness) { h.payment("pay_1", "u2", "pack_75", "2.99", paymentprovider.StatusSucceeded) },
			claimed: "u1",
			wantErr: models.ErrAccountMismatch,
		},
		{
			name:    "amount below price",
			setup:   func(h *harness) { h.payment("pay_1", "u1", "pack_75", "0.01", paymentprovider.StatusSucceeded) },
			claimed: "u1",
			wantErr: models.ErrAmountMismatch,
		},
		{
			name:    "unknown product",
			setup:   func(h *harness) { h.payment("pay_1", "u1", "pack_9000", "2.99", paymentprovider.StatusSucceeded) },
			claimed: "u1",
			wantErr: models.ErrUnknownProduct,
		},
		{
			name: "gateway timeout",
			setup: func(h *harness) {
				h.gateway.On("RetrievePayment", mock.Anything, "pay_1").
					Return(nil, fmt.Errorf("%w: context deadline exceeded", models.ErrGatewayUnavailable))
			},
			claimed: "u1",
			wantErr: models.ErrGatewayUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.open(t, "u1", "")
			tt.setup(h)

			_, err := h.svc.Confirm(context.Background(), "pay_1", tt.claimed)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, h.purchases(t, "u1"))
			assert.Equal(t, int64(5), h.balance(t, "u1"))
			h.gateway.AssertNotCalled(t, "IssueRefund", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestConfirm_LifetimeGrant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "team", "99.00", paymentprovider.StatusSucceeded)

	res, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.PurchaseResult{PaymentRef: "pay_1", Credits: 150, Balance: 155, Tier: models.TierPro, Lifetime: true}, res)

	acc, err := h.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, acc.IsLifetimeHolder)
	assert.Equal(t, "99", acc.LifetimeSpend.String())

	pool, err := h.store.GetPool(ctx, "TEAM")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Claimed)

	again, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	assert.Equal(t, res, again)
	pool, err = h.store.GetPool(ctx, "TEAM")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Claimed, "replay must not claim a second slot")
}

// Ёмкость 1, два проведённых платежа: второй возвращается шлюзу.
func TestConfirm_OversoldIsRefunded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.open(t, "u2", "")
	h.payment("pay_1", "u1", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.payment("pay_2", "u2", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.gateway.On("IssueRefund", mock.Anything, "pay_2", mock.Anything).
		Return(&paymentprovider.Refund{ID: "rf_2", PaymentID: "pay_2", Status: "succeeded"}, nil)

	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)

	_, err = h.svc.Confirm(ctx, "pay_2", "u2")
	require.ErrorIs(t, err, models.ErrSoldOutRefunded)

	h.gateway.AssertCalled(t, "IssueRefund", mock.Anything, "pay_2", mock.Anything)
	attempt, err := h.store.GetRefund(ctx, "pay_2")
	require.NoError(t, err)
	assert.Equal(t, models.RefundSucceeded, attempt.Status)

	assert.Empty(t, h.purchases(t, "u2"))
	acc, err := h.ledger.Account(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, acc.IsLifetimeHolder)

	refunded := h.notifier.ofType(models.EventPurchaseRefunded)
	require.Len(t, refunded, 1)
	assert.Equal(t, "u2@example.com", refunded[0].Email)

	pool, err := h.store.GetPool(ctx, "SOLO")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Claimed)

	// повтор подтверждения не вызывает второй возврат
	_, err = h.svc.Confirm(ctx, "pay_2", "u2")
	require.ErrorIs(t, err, models.ErrSoldOutRefunded)
	h.gateway.AssertNumberOfCalls(t, "IssueRefund", 1)
}

func TestConfirm_OversoldRefundFailureStillReportsRefunded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.open(t, "u2", "")
	h.payment("pay_1", "u1", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.payment("pay_2", "u2", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.gateway.On("IssueRefund", mock.Anything, "pay_2", mock.Anything).Return(nil, models.ErrGatewayUnavailable)

	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, "pay_2", "u2")
	require.ErrorIs(t, err, models.ErrSoldOutRefunded)

	attempt, err := h.store.GetRefund(ctx, "pay_2")
	require.NoError(t, err)
	assert.Equal(t, models.RefundFailed, attempt.Status)
	assert.Len(t, h.notifier.ofType(models.EventRefundFailed), 1)
}

func TestConfirm_SecondLifetimeIsRefunded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.payment("pay_2", "u1", "team", "99.00", paymentprovider.StatusSucceeded)
	h.gateway.On("IssueRefund", mock.Anything, "pay_2", mock.Anything).Return(&paymentprovider.Refund{ID: "rf"}, nil)

	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, "pay_2", "u1")
	require.ErrorIs(t, err, models.ErrAlreadyLifetime)

	acc, err := h.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, acc.IsLifetimeHolder, "the original grant stays")
	assert.Equal(t, models.TierStarter, acc.Tier)

	team, err := h.store.GetPool(ctx, "TEAM")
	require.NoError(t, err)
	assert.Zero(t, team.Claimed)

	// повтор подтверждения сообщает ту же причину и не возвращает деньги второй раз
	_, err = h.svc.Confirm(ctx, "pay_2", "u1")
	require.ErrorIs(t, err, models.ErrAlreadyLifetime)
	h.gateway.AssertNumberOfCalls(t, "IssueRefund", 1)
}

// Два покупателя одновременно подтверждают последний слот.
func TestConfirm_LastSlotRace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyers := []struct{ account, ref string }{{"u1", "pay_1"}, {"u2", "pay_2"}}
	for _, b := range buyers {
		h.open(t, b.account, "")
		h.payment(b.ref, b.account, "solo", "49.00", paymentprovider.StatusSucceeded)
	}
	h.gateway.On("IssueRefund", mock.Anything, mock.Anything, mock.Anything).
		Return(&paymentprovider.Refund{ID: "rf", Status: "succeeded"}, nil)

	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, account, ref string) {
			defer wg.Done()
			_, errs[i] = h.svc.Confirm(ctx, ref, account)
		}(i, b.account, b.ref)
	}
	wg.Wait()

	winners, refunded := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			assert.Len(t, h.purchases(t, buyers[i].account), 1)
		case errors.Is(err, models.ErrSoldOutRefunded):
			refunded++
			assert.Empty(t, h.purchases(t, buyers[i].account))
			attempt, err := h.store.GetRefund(ctx, buyers[i].ref)
			require.NoError(t, err)
			assert.Equal(t, models.RefundSucceeded, attempt.Status)
		default:
			t.Errorf("%s: unexpected error %v", buyers[i].account, err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, refunded)

	pool, err := h.store.GetPool(ctx, "SOLO")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Claimed)
	h.gateway.AssertNumberOfCalls(t, "IssueRefund", 1)

	holders := 0
	for _, b := range buyers {
		acc, err := h.ledger.Account(ctx, b.account)
		require.NoError(t, err)
		if acc.IsLifetimeHolder {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
}

func TestConfirm_PlanPeriods(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_p1", "u1", "pro_monthly", "12.00", paymentprovider.StatusSucceeded)
	h.payment("pay_p2", "u1", "pro_monthly", "12.00", paymentprovider.StatusSucceeded)

	res, err := h.svc.Confirm(ctx, "pay_p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.PurchaseResult{PaymentRef: "pay_p1", Credits: 500, Balance: 505, Tier: models.TierPro}, res)

	// следующий период приходит вебхуком отдельным платежом
	res, err = h.svc.ConfirmFromGateway(ctx, "pay_p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1005), res.Balance)

	_, err = h.svc.ConfirmFromGateway(ctx, "pay_p2")
	require.NoError(t, err)

	acc, err := h.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, acc.Tier)
	assert.Equal(t, models.TierPro, acc.PlanTier)
	assert.False(t, acc.IsLifetimeHolder)
	assert.Equal(t, int64(1005), acc.Balance)
	assert.Len(t, h.purchases(t, "u1"), 2)
	assert.Len(t, h.notifier.ofType(models.EventPurchaseConfirmed), 2)
}

func TestCancelPlan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "solo", "49.00", paymentprovider.StatusSucceeded)
	h.payment("pay_p1", "u1", "pro_monthly", "12.00", paymentprovider.StatusSucceeded)

	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	res, err := h.svc.Confirm(ctx, "pay_p1", "u1")
	require.NoError(t, err)
	require.Equal(t, models.TierPro, res.Tier)

	acc, err := h.svc.CancelPlan(ctx, "u1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.TierStarter, acc.Tier, "lifetime tier stays after the plan ends")
	assert.Empty(t, acc.PlanTier)
	assert.Equal(t, int64(555), acc.Balance, "credits from paid periods are kept")

	again, err := h.svc.CancelPlan(ctx, "u1", "sub_1")
	require.NoError(t, err)
	assert.Equal(t, acc.Tier, again.Tier)
	assert.Equal(t, acc.Balance, again.Balance)

	history, err := h.ledger.History(ctx, "u1", 100)
	require.NoError(t, err)
	var adjustments []models.TransactionEntry
	for _, e := range history {
		if e.Kind == models.KindAdjustment {
			adjustments = append(adjustments, e)
		}
	}
	require.Len(t, adjustments, 1)
	assert.Zero(t, adjustments[0].Amount)
	assert.Equal(t, "cancel:sub_1", *adjustments[0].ExternalRef)
}

func TestCancelPlan_Rejections(t *testing.T) {
	h := newHarness(t)
	h.open(t, "u1", "")

	tests := []struct {
		name      string
		accountID string
		ref       string
		wantErr   error
	}{
		{name: "no account", ref: "sub_1", wantErr: models.ErrNotFound},
		{name: "no subscription", accountID: "u1", wantErr: models.ErrNotFound},
		{name: "unknown account", accountID: "ghost", ref: "sub_1", wantErr: models.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CancelPlan(context.Background(), tt.accountID, tt.ref)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfirm_ReferralRewardOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "ref", "")
	h.open(t, "u1", "ref")
	h.payment("pay_1", "u1", "pack_25", "1.19", paymentprovider.StatusSucceeded)
	h.payment("pay_2", "u1", "pack_25", "1.19", paymentprovider.StatusSucceeded)

	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, "pay_2", "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(15), h.balance(t, "ref"))
	granted := h.notifier.ofType(models.EventCreditsGranted)
	require.Len(t, granted, 1)
	assert.Equal(t, "ref", granted[0].AccountID)
}

func TestConfirmFromGateway(t *testing.T) {
	h := newHarness(t)
	h.open(t, "u1", "")
	h.payment("pay_1", "u1", "pack_25", "1.19", paymentprovider.StatusSucceeded)

	res, err := h.svc.ConfirmFromGateway(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, int64(35), res.Balance)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")

	var sent paymentprovider.CreatePaymentRequest
	h.gateway.On("CreatePayment", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(paymentprovider.CreatePaymentRequest) }).
		Return(&paymentprovider.Payment{
			ID:           "pay_new",
			Status:       paymentprovider.StatusPending,
			Confirmation: &paymentprovider.Confirmation{Type: "redirect", ConfirmationURL: "https://pay.example.com/pay_new"},
		}, nil)

	out, err := h.svc.Checkout(ctx, "u1", "solo")
	require.NoError(t, err)
	assert.Equal(t, &models.Checkout{
		PaymentRef:      "pay_new",
		ConfirmationURL: "https://pay.example.com/pay_new",
		Product:         "solo",
		Price:           "49.00",
		Currency:        "GBP",
		Credits:         50,
	}, out)
	assert.Equal(t, "49.00", sent.Amount.Value)
	assert.Equal(t, "u1", sent.Metadata[paymentprovider.MetaAccountID])
	assert.Equal(t, "solo", sent.Metadata[paymentprovider.MetaProduct])
	assert.Equal(t, "https://app.example.com/billing", sent.Confirmation.ReturnURL)
	assert.False(t, sent.SavePaymentMethod)
}

func TestCheckout_PlanSavesPaymentMethod(t *testing.T) {
	h := newHarness(t)
	h.open(t, "u1", "")

	var sent paymentprovider.CreatePaymentRequest
	h.gateway.On("CreatePayment", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(paymentprovider.CreatePaymentRequest) }).
		Return(&paymentprovider.Payment{ID: "pay_sub", Status: paymentprovider.StatusPending}, nil)

	out, err := h.svc.Checkout(context.Background(), "u1", "pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(500), out.Credits)
	assert.Equal(t, "12.00", out.Price)
	assert.True(t, sent.SavePaymentMethod)
	assert.Equal(t, string(models.ProductPlan), sent.Metadata[paymentprovider.MetaKind])
}

func TestCheckout_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.open(t, "u1", "")
	h.open(t, "u2", "")
	h.payment("pay_1", "u1", "solo", "49.00", paymentprovider.StatusSucceeded)
	_, err := h.svc.Confirm(ctx, "pay_1", "u1")
	require.NoError(t, err)

	tests := []struct {
		name      string
		accountID string
		product   string
		wantErr   error
	}{
		{name: "unknown product", accountID: "u2", product: "nope", wantErr: models.ErrUnknownProduct},
		{name: "unknown account", accountID: "ghost", product: "pack_25", wantErr: models.ErrAccountNotFound},
		{name: "sold out", accountID: "u2", product: "solo", wantErr: models.ErrSoldOut},
		{name: "already lifetime", accountID: "u1", product: "team", wantErr: models.ErrAlreadyLifetime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Checkout(ctx, tt.accountID, tt.product)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	h.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}
