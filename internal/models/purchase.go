package models

import "time"

// ProductKind вид продукта, продаваемого через платёжный шлюз.
type ProductKind string

const (
	ProductCreditPack   ProductKind = "credit_pack"
	ProductLifetimeDeal ProductKind = "lifetime_deal"
	ProductPlan         ProductKind = "plan"
)

// PurchaseResult итог подтверждения платежа.
// Повторный вызов подтверждения для того же платежа возвращает тот же результат.
type PurchaseResult struct {
	PaymentRef string `json:"payment_ref"`
	Credits    int64  `json:"credits"`
	Balance    int64  `json:"balance"`
	Tier       Tier   `json:"tier"`
	Lifetime   bool   `json:"lifetime"`
}

// Checkout созданный в шлюзе платёж, который клиент должен оплатить.
type Checkout struct {
	PaymentRef      string `json:"payment_ref"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	Product         string `json:"product"`
	Price           string `json:"price"`
	Currency        string `json:"currency"`
	Credits         int64  `json:"credits"`
}

// RefundStatus состояние компенсирующего возврата.
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundSucceeded RefundStatus = "SUCCEEDED"
	RefundFailed    RefundStatus = "FAILED"
)

// RefundAttempt запись журнала компенсирующих возвратов.
// На один платёж существует не более одной записи.
type RefundAttempt struct {
	PaymentRef string       `json:"payment_ref"`
	AccountID  string       `json:"account_id"`
	Reason     string       `json:"reason"`
	Status     RefundStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	LastError  string       `json:"last_error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
