package transactionlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/memstore"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertEntry(ctx context.Context, entry models.TransactionEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockRepository) FindEntry(ctx context.Context, ref string, kind models.EntryKind) (*models.TransactionEntry, error) {
	args := m.Called(ctx, ref, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionEntry), args.Error(1)
}

func (m *MockRepository) GetEntry(ctx context.Context, id string) (*models.TransactionEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionEntry), args.Error(1)
}

func (m *MockRepository) ListEntries(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransactionEntry), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "u1", Balance: 7, Tier: models.TierFree}, nil))
	svc := New(newNoopLogger(), store)

	e, err := svc.Record(ctx, models.TransactionEntry{AccountID: "u1", Amount: 10, Kind: models.KindBonus, ExternalRef: models.Ref("referral:u2")})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = svc.Record(ctx, models.TransactionEntry{AccountID: "u1", Amount: 10, Kind: models.KindBonus, ExternalRef: models.Ref("referral:u2")})
	assert.ErrorIs(t, err, models.ErrDuplicate)

	_, err = svc.Record(ctx, models.TransactionEntry{AccountID: "u1", Amount: 1, Kind: "BOGUS"})
	assert.Error(t, err)

	_, err = svc.Record(ctx, models.TransactionEntry{AccountID: "ghost", Amount: 1, Kind: models.KindAdjustment})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	found, err := svc.FindByExternalRef(ctx, "referral:u2", models.KindBonus)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, e.ID, found.ID)
	assert.Equal(t, int64(7), found.BalanceAfter)

	missing, err := svc.FindByExternalRef(ctx, "referral:u3", models.KindBonus)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestService_FindByExternalRef_StoreError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindEntry", mock.Anything, "pay_1", models.KindPurchase).Return(nil, errors.New("connection reset"))

	_, err := New(newNoopLogger(), repo).FindByExternalRef(context.Background(), "pay_1", models.KindPurchase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transactionlog.FindByExternalRef")
}

func TestService_List_Limits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: defaultListLimit},
		{name: "negative", limit: -5, want: defaultListLimit},
		{name: "explicit", limit: 20, want: 20},
		{name: "clamped", limit: 10000, want: maxListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("ListEntries", mock.Anything, "u1", tt.want).Return([]models.TransactionEntry{}, nil).Once()

			_, err := New(newNoopLogger(), repo).List(context.Background(), "u1", tt.limit)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}
