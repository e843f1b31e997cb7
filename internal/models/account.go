// Package models содержит доменные структуры кредитного реестра:
// аккаунты, записи журнала транзакций, пулы лайфтайм-слотов,
// результаты подтверждения покупок и события уведомлений.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier тарифный план аккаунта.
type Tier string

const (
	TierFree      Tier = "FREE"
	TierStarter   Tier = "STARTER"
	TierPro       Tier = "PRO"
	TierUnlimited Tier = "UNLIMITED"
)

// Valid сообщает, известен ли тариф.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Rank порядковый номер тарифа, -1 для неизвестного.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierStarter:
		return 1
	case TierPro:
		return 2
	case TierUnlimited:
		return 3
	}
	return -1
}

// HigherTier возвращает старший из тарифов, но не ниже FREE.
func HigherTier(tiers ...Tier) Tier {
	best := TierFree
	for _, t := range tiers {
		if t.Rank() > best.Rank() {
			best = t
		}
	}
	return best
}

// Account представляет кредитный счёт пользователя.
// Баланс меняется только через операции CreditLedger и никогда не бывает отрицательным.
//
// Tier выводится из двух источников: действующей подписки (PlanTier) и
// лайфтайма (LifetimeTier). Снятие одного источника оставляет тариф другого.
type Account struct {
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	Balance            int64           `json:"balance"`
	Tier               Tier            `json:"tier"`
	PlanTier           Tier            `json:"plan_tier,omitempty"`
	LifetimeTier       Tier            `json:"-"`
	IsLifetimeHolder   bool            `json:"is_lifetime_holder"`
	LifetimePaymentRef *string         `json:"-"` // платёж, которым выдан лайфтайм
	LifetimeSpend      decimal.Decimal `json:"lifetime_spend"`
	ReferredBy         *string         `json:"-"`
	ReferralRewarded   bool            `json:"-"`
	LoginStreak        int             `json:"login_streak"`
	LastBonusOn        *time.Time      `json:"-"` // дата последнего ежедневного бонуса, UTC
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ApplyTier меняет тарифы аккаунта согласно эффекту начисления.
func (a *Account) ApplyTier(e CreditEffect) {
	if e.UpgradeTier == "" {
		return
	}
	switch {
	case e.Plan:
		a.PlanTier = e.UpgradeTier
	case e.Lifetime:
		a.LifetimeTier = e.UpgradeTier
	default:
		a.Tier = HigherTier(a.Tier, e.UpgradeTier)
		return
	}
	a.Tier = HigherTier(a.PlanTier, a.LifetimeTier)
}

// ClearPlan снимает тариф подписки. Возвращает false, если подписки не было.
func (a *Account) ClearPlan() bool {
	if a.PlanTier == "" {
		return false
	}
	a.PlanTier = ""
	a.Tier = HigherTier(a.LifetimeTier)
	return true
}

// RevokeLifetime снимает лайфтайм, оставляя тариф подписки.
func (a *Account) RevokeLifetime() {
	a.IsLifetimeHolder = false
	a.LifetimePaymentRef = nil
	a.LifetimeTier = ""
	a.Tier = HigherTier(a.PlanTier)
}
