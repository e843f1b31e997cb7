package models

import "errors"

// Восстанавливаемые ошибки возвращаются как значения и сравниваются через errors.Is.
// Недоступность хранилища сюда не входит и пробрасывается как есть.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicate           = errors.New("duplicate transaction")
	ErrPaymentNotSettled   = errors.New("payment not settled")
	ErrAccountMismatch     = errors.New("payment belongs to another account")
	ErrSoldOut             = errors.New("sold out")
	ErrSoldOutRefunded     = errors.New("sold out, payment refunded")
	ErrRefundFailed        = errors.New("refund failed")
	ErrAlreadyLifetime     = errors.New("account already holds a lifetime plan")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrAmountMismatch      = errors.New("paid amount does not match product price")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPoolNotFound        = errors.New("slot pool not found")
	ErrNotFound            = errors.New("not found")
	ErrBonusClaimed        = errors.New("daily bonus already claimed")
)
