package refund

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) RefundDebit(ctx context.Context, accountID, debitID, reason string) (int64, error) {
	args := m.Called(ctx, accountID, debitID, reason)
	return args.Get(0).(int64), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const entryID = "0b8f2a3e-5a5e-4a7c-9d59-0d6b7f0e3c11"

func TestHandler_ServeHTTP(t *testing.T) {
	valid := `{"entry_id":"` + entryID + `","reason":"timeout"}`

	tests := []struct {
		name       string
		body       string
		mockBal    int64
		mockErr    error
		expectCall bool
		wantStatus int
	}{
		{name: "missing entry", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "not a uuid", body: `{"entry_id":"abc"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "refunded", body: valid, mockBal: 5, expectCall: true, wantStatus: http.StatusOK},
		{name: "already refunded", body: valid, mockErr: models.ErrDuplicate, expectCall: true, wantStatus: http.StatusConflict},
		{name: "unknown entry", body: valid, mockErr: models.ErrNotFound, expectCall: true, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.expectCall {
				svc.On("RefundDebit", mock.Anything, "u1", entryID, "timeout").Return(tt.mockBal, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/refund", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, "u1"))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
