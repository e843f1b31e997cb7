package paymentprovider

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы платежа в шлюзе.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Ключи metadata, которые сервис кладёт в платёж при создании.
const (
	MetaAccountID = "account_id"
	MetaProduct   = "product"
	MetaKind      = "kind"
	MetaCredits   = "credits"
)

// Amount денежная сумма в формате шлюза.
type Amount struct {
	Value    string `json:"value"` // например "49.00"
	Currency string `json:"currency"`
}

// NewAmount форматирует сумму с двумя знаками после запятой.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value.StringFixed(2), Currency: currency}
}

// Decimal разбирает Value.
func (a Amount) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", a.Value, err)
	}
	return d, nil
}

// Confirmation способ подтверждения платежа покупателем.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CreatePaymentRequest запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// шлюз сохраняет способ оплаты для списаний следующих периодов подписки
	SavePaymentMethod bool `json:"save_payment_method,omitempty"`
}

// Payment платёж в шлюзе.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Settled сообщает, что деньги списаны с покупателя.
func (p Payment) Settled() bool {
	return p.Status == StatusSucceeded
}

// RefundRequest запрос на возврат платежа.
type RefundRequest struct {
	PaymentID   string `json:"payment_id"`
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Refund возврат в шлюзе.
type Refund struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	Amount    Amount    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError ответ шлюза с кодом 4xx. Повтор запроса не поможет.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s %s", e.StatusCode, e.Code, e.Description)
}
