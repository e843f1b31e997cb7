package sl_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

func TestErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "error text", err: errors.New("insufficient credits"), want: "insufficient credits"},
		{name: "nil error", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := sl.Err(tt.err)
			assert.Equal(t, "error", attr.Key)
			assert.Equal(t, tt.want, attr.Value.String())
		})
	}
}

func TestMoney(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Info("paid", sl.Money("price", decimal.RequireFromString("2.9"), "GBP"))

	assert.Contains(t, buf.String(), "price.amount=2.90")
	assert.Contains(t, buf.String(), "price.currency=GBP")
}
