package models

import "time"

// EventType тип события для рассылки уведомлений.
type EventType string

const (
	EventCreditsGranted    EventType = "credits.granted"
	EventPurchaseConfirmed EventType = "purchase.confirmed"
	EventPurchaseRefunded  EventType = "purchase.refunded"
	EventRefundFailed      EventType = "refund.failed"
)

// Event сообщение, публикуемое в брокер. Получатели только информируются,
// ответ от них не ожидается.
type Event struct {
	Type       EventType `json:"type"`
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email,omitempty"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	Credits    int64     `json:"credits,omitempty"`
	Balance    int64     `json:"balance,omitempty"`
	Tier       Tier      `json:"tier,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
