package refund

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/memstore"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) IssueRefund(ctx context.Context, paymentID, reason string) (*paymentprovider.Refund, error) {
	args := m.Called(ctx, paymentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Refund), args.Error(1)
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

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() config.RefundPolicy {
	return config.RefundPolicy{
		InitialInterval:  time.Millisecond,
		MaxInterval:      2 * time.Millisecond,
		Multiplier:       2,
		MaxAttempts:      3,
		MaxTotalAttempts: 5,
	}
}

func setup(t *testing.T) (*Compensator, *memstore.Store, *MockGateway, *recordingNotifier) {
	t.Helper()
	store := memstore.New()
	gw := new(MockGateway)
	n := &recordingNotifier{}
	return New(newNoopLogger(), store, gw, n, testPolicy()), store, gw, n
}

// lifetimeHolder открывает аккаунт с лайфтаймом, выданным платежом paymentRef.
func lifetimeHolder(t *testing.T, store *memstore.Store, accountID, paymentRef string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: accountID, Tier: models.TierFree}, nil))
	_, err := store.CreditAccount(ctx, models.TransactionEntry{
		ID: "e-" + paymentRef, AccountID: accountID, Amount: 50, Kind: models.KindPurchase, ExternalRef: models.Ref(paymentRef),
	}, models.CreditEffect{UpgradeTier: models.TierStarter, Lifetime: true, Spend: decimal.NewFromInt(49)})
	require.NoError(t, err)
}

func TestCompensate_Success(t *testing.T) {
	ctx := context.Background()
	c, store, gw, n := setup(t)
	lifetimeHolder(t, store, "u1", "pay_1")

	gw.On("IssueRefund", mock.Anything, "pay_1", "sold out").
		Return(nil, fmt.Errorf("dial: %w", models.ErrGatewayUnavailable)).Once()
	gw.On("IssueRefund", mock.Anything, "pay_1", "sold out").
		Return(&paymentprovider.Refund{ID: "rf_1", Status: "succeeded"}, nil).Once()

	require.NoError(t, c.Compensate(ctx, "pay_1", "u1", "sold out"))

	r, err := c.Lookup(ctx, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, models.RefundSucceeded, r.Status)
	assert.Equal(t, 2, r.Attempts)

	acc, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, acc.IsLifetimeHolder)
	assert.Equal(t, models.TierFree, acc.Tier)
	assert.Zero(t, n.count())
	gw.AssertExpectations(t)

	// повторная компенсация того же платежа не обращается к шлюзу
	require.NoError(t, c.Compensate(ctx, "pay_1", "u1", "sold out"))
	gw.AssertNumberOfCalls(t, "IssueRefund", 2)
}

func TestCompensate_Exhausted(t *testing.T) {
	ctx := context.Background()
	c, store, gw, n := setup(t)
	lifetimeHolder(t, store, "u1", "pay_1")

	gw.On("IssueRefund", mock.Anything, "pay_1", mock.Anything).
		Return(nil, fmt.Errorf("timeout: %w", models.ErrGatewayUnavailable))

	err := c.Compensate(ctx, "pay_1", "u1", "sold out")
	require.ErrorIs(t, err, models.ErrRefundFailed)
	gw.AssertNumberOfCalls(t, "IssueRefund", 3)

	r, err := c.Lookup(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.RefundFailed, r.Status)
	assert.Equal(t, 3, r.Attempts)
	assert.Contains(t, r.LastError, "timeout")

	// лайфтайм снимается даже при неудачном возврате
	acc, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, acc.IsLifetimeHolder)

	require.Equal(t, 1, n.count())
	assert.Equal(t, models.EventRefundFailed, n.events[0].Type)
	assert.Equal(t, "pay_1", n.events[0].PaymentRef)
}

func TestCompensate_RejectedIsNotRetried(t *testing.T) {
	c, _, gw, _ := setup(t)
	gw.On("IssueRefund", mock.Anything, "pay_1", mock.Anything).
		Return(nil, &paymentprovider.APIError{StatusCode: 400, Code: "invalid_request"})

	err := c.Compensate(context.Background(), "pay_1", "u1", "sold out")
	require.ErrorIs(t, err, models.ErrRefundFailed)

	var apiErr *paymentprovider.APIError
	assert.True(t, errors.As(err, &apiErr))
	gw.AssertNumberOfCalls(t, "IssueRefund", 1)
}

func TestRetryPending(t *testing.T) {
	ctx := context.Background()
	c, store, gw, n := setup(t)

	// pay_ok уже падал, теперь шлюз отвечает
	_, err := store.CreateRefund(ctx, models.RefundAttempt{PaymentRef: "pay_ok", AccountID: "u1", Reason: "sold out"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRefund(ctx, "pay_ok", models.RefundFailed, 3, "timeout"))

	// pay_down получает два оставшихся до лимита попытки
	_, err = store.CreateRefund(ctx, models.RefundAttempt{PaymentRef: "pay_down", AccountID: "u2", Reason: "sold out"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRefund(ctx, "pay_down", models.RefundFailed, 3, "timeout"))

	// pay_dead исчерпал лимит
	_, err = store.CreateRefund(ctx, models.RefundAttempt{PaymentRef: "pay_dead", AccountID: "u3", Reason: "sold out"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRefund(ctx, "pay_dead", models.RefundFailed, 5, "timeout"))

	gw.On("IssueRefund", mock.Anything, "pay_ok", mock.Anything).Return(&paymentprovider.Refund{ID: "rf"}, nil)
	gw.On("IssueRefund", mock.Anything, "pay_down", mock.Anything).Return(nil, models.ErrGatewayUnavailable)

	report, err := c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 3, Succeeded: 1, Failed: 1, Exhausted: 1}, report)
	gw.AssertNumberOfCalls(t, "IssueRefund", 3)
	gw.AssertNotCalled(t, "IssueRefund", mock.Anything, "pay_dead", mock.Anything)

	down, err := c.Lookup(ctx, "pay_down")
	require.NoError(t, err)
	assert.Equal(t, 5, down.Attempts)

	// оповещения: исчерпанный pay_dead и упавший pay_down
	assert.Equal(t, 2, n.count())

	// следующий проход: оба исчерпаны, оповещение на каждую запись
	report, err = c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Exhausted: 2}, report)
	assert.Equal(t, 4, n.count())

	pending, err := c.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRetryPending_ExhaustedDoNotCrowdOut(t *testing.T) {
	ctx := context.Background()
	c, store, gw, _ := setup(t)

	// полная выборка исчерпавших лимит записей
	for i := 0; i < sweepBatch; i++ {
		ref := fmt.Sprintf("pay_dead_%d", i)
		_, err := store.CreateRefund(ctx, models.RefundAttempt{PaymentRef: ref, AccountID: "u_dead", Reason: "sold out"})
		require.NoError(t, err)
		require.NoError(t, store.UpdateRefund(ctx, ref, models.RefundFailed, 5, "timeout"))
	}
	_, err := store.CreateRefund(ctx, models.RefundAttempt{PaymentRef: "pay_fresh", AccountID: "u1", Reason: "sold out"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateRefund(ctx, "pay_fresh", models.RefundFailed, 1, "timeout"))

	gw.On("IssueRefund", mock.Anything, "pay_fresh", mock.Anything).Return(&paymentprovider.Refund{ID: "rf"}, nil).Once()

	report, err := c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, sweepBatch-1, report.Exhausted)
	gw.AssertExpectations(t)

	fresh, err := c.Lookup(ctx, "pay_fresh")
	require.NoError(t, err)
	assert.Equal(t, models.RefundSucceeded, fresh.Status)
}

func TestLookup_Absent(t *testing.T) {
	c, _, _, _ := setup(t)
	r, err := c.Lookup(context.Background(), "pay_404")
	require.NoError(t, err)
	assert.Nil(t, r)
}
