package rabbitmq

import "github.com/magabrotheeeer/credit-ledger/internal/models"

// QueueConfig пара очередь / routing key
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Очереди воркера уведомлений.
const (
	QueueCreditsGranted    = "notification.credits_granted"
	QueuePurchaseConfirmed = "notification.purchase_confirmed"
	QueuePurchaseRefunded  = "notification.purchase_refunded"
	QueueOperatorAlerts    = "operator.refund_failed"
)

// GetNotificationQueues возвращает очереди, routing key которых совпадает с типом события.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueCreditsGranted, RoutingKey: string(models.EventCreditsGranted)},
		{QueueName: QueuePurchaseConfirmed, RoutingKey: string(models.EventPurchaseConfirmed)},
		{QueueName: QueuePurchaseRefunded, RoutingKey: string(models.EventPurchaseRefunded)},
		{QueueName: QueueOperatorAlerts, RoutingKey: string(models.EventRefundFailed)},
	}
}
