package confirm

import (
	"context"
	"encoding/json"
	"fmt"
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

func (m *MockService) Confirm(ctx context.Context, ref, accountID string) (*models.PurchaseResult, error) {
	args := m.Called(ctx, ref, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_ServeHTTP(t *testing.T) {
	result := &models.PurchaseResult{PaymentRef: "pay_1", Credits: 90, Balance: 95, Tier: models.TierFree}

	tests := []struct {
		name       string
		account    string
		body       string
		mockRes    *models.PurchaseResult
		mockErr    error
		expectCall bool
		wantStatus int
		wantCode   string
	}{
		{name: "no account", body: `{"payment_ref":"pay_1"}`, wantStatus: http.StatusUnauthorized},
		{name: "bad json", account: "u1", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing ref", account: "u1", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "confirmed", account: "u1", body: `{"payment_ref":"pay_1"}`, mockRes: result, expectCall: true, wantStatus: http.StatusOK},
		{name: "not settled", account: "u1", body: `{"payment_ref":"pay_1"}`, mockErr: models.ErrPaymentNotSettled, expectCall: true, wantStatus: http.StatusBadRequest, wantCode: "PAYMENT_NOT_SETTLED"},
		{name: "other account", account: "u1", body: `{"payment_ref":"pay_1"}`, mockErr: models.ErrAccountMismatch, expectCall: true, wantStatus: http.StatusForbidden, wantCode: "ACCOUNT_MISMATCH"},
		{name: "sold out refunded", account: "u1", body: `{"payment_ref":"pay_1"}`, mockErr: fmt.Errorf("purchase.Confirm: %w", models.ErrSoldOutRefunded), expectCall: true, wantStatus: http.StatusGone, wantCode: "SOLD_OUT_REFUNDED"},
		{name: "gateway timeout", account: "u1", body: `{"payment_ref":"pay_1"}`, mockErr: models.ErrGatewayUnavailable, expectCall: true, wantStatus: http.StatusBadGateway, wantCode: "GATEWAY_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.expectCall {
				svc.On("Confirm", mock.Anything, "pay_1", tt.account).Return(tt.mockRes, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/confirm", strings.NewReader(tt.body))
			if tt.account != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, tt.account))
			}
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
			if tt.wantStatus == http.StatusOK {
				data := body["data"].(map[string]any)
				assert.Equal(t, float64(95), data["balance"])
			}
		})
	}
}
