// Package sl содержит атрибуты slog, общие для всех сервисов кредитного журнала.
package sl

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// Err возвращает атрибут "error" с текстом ошибки. nil превращается в пустую строку.
//
//	log.Error("failed to debit account", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Money возвращает денежную сумму как группу {amount, currency}.
func Money(key string, amount decimal.Decimal, currency string) slog.Attr {
	return slog.Group(key,
		slog.String("amount", amount.StringFixed(2)),
		slog.String("currency", currency),
	)
}
