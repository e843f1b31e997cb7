package debit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Reserve(ctx context.Context, accountID string, amount int64, kind models.EntryKind, description string) (models.TransactionEntry, error) {
	args := m.Called(ctx, accountID, amount, kind, description)
	return args.Get(0).(models.TransactionEntry), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockEntry  models.TransactionEntry
		mockErr    error
		expectCall bool
		wantStatus int
	}{
		{name: "zero amount", body: `{"amount":0}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "negative amount", body: `{"amount":-3}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "string amount", body: `{"amount":"3"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "debited",
			body:       `{"amount":3,"description":"upscale"}`,
			mockEntry:  models.TransactionEntry{ID: "e1", Amount: -3, BalanceAfter: 2},
			expectCall: true,
			wantStatus: http.StatusOK,
		},
		{name: "insufficient", body: `{"amount":3,"description":"upscale"}`, mockErr: models.ErrInsufficientCredits, expectCall: true, wantStatus: http.StatusPaymentRequired},
		{name: "no account", body: `{"amount":3,"description":"upscale"}`, mockErr: models.ErrAccountNotFound, expectCall: true, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.expectCall {
				svc.On("Reserve", mock.Anything, "u1", int64(3), models.KindGeneration, "upscale").Return(tt.mockEntry, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/debit", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, "u1"))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)

			if tt.wantStatus == http.StatusOK {
				var body struct {
					Data Result `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, Result{EntryID: "e1", Balance: 2}, body.Data)
			}
		})
	}
}
