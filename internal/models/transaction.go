package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind бизнес-причина изменения баланса.
type EntryKind string

const (
	KindGeneration EntryKind = "GENERATION"
	KindPurchase   EntryKind = "PURCHASE"
	KindRefund     EntryKind = "REFUND"
	KindBonus      EntryKind = "BONUS"
	KindAdjustment EntryKind = "ADJUSTMENT"
)

// Valid сообщает, известен ли тип записи.
func (k EntryKind) Valid() bool {
	switch k {
	case KindGeneration, KindPurchase, KindRefund, KindBonus, KindAdjustment:
		return true
	}
	return false
}

// TransactionEntry неизменяемая запись журнала транзакций.
// Amount со знаком: положительные значения начисляют, отрицательные списывают.
// Для пары (ExternalRef, Kind) существует не более одной записи.
type TransactionEntry struct {
	ID           string           `json:"id"`
	AccountID    string           `json:"account_id"`
	Amount       int64            `json:"amount"`
	Kind         EntryKind        `json:"kind"`
	ExternalRef  *string          `json:"external_ref,omitempty"`
	Description  string           `json:"description,omitempty"`
	MoneyAmount  *decimal.Decimal `json:"money_amount,omitempty"`
	BalanceAfter int64            `json:"balance_after"` // баланс сразу после применения записи
	CreatedAt    time.Time        `json:"created_at"`
}

// CreditEffect побочные эффекты начисления, применяемые в той же единице работы.
type CreditEffect struct {
	UpgradeTier Tier            // пустое значение оставляет тариф без изменений
	Lifetime    bool            // выдать лайфтайм, привязав его к ExternalRef записи
	Plan        bool            // UpgradeTier становится тарифом подписки
	Spend       decimal.Decimal // прибавляется к LifetimeSpend
	Streak      *DailyStreak
}

// DailyStreak серия ежедневных бонусов, сохраняемая вместе с начислением бонуса.
type DailyStreak struct {
	Days int
	On   time.Time // дата начисления, UTC
}

// Ref возвращает указатель на ref или nil для пустой строки.
func Ref(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
