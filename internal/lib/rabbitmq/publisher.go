package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Channel часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishEvent публикует событие журнала с routing key, равным типу события.
// MessageId уникален для каждой публикации, получатель может отбрасывать повторы доставки.
func PublishEvent(ch Channel, exchange string, ev models.Event) error {
	const op = "rabbitmq.PublishEvent"
	if ev.Type == "" {
		return fmt.Errorf("%s: event type is empty", op)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := persistentJSON(body)
	msg.MessageId = uuid.NewString()
	msg.Type = string(ev.Type)
	msg.Timestamp = ev.OccurredAt
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := ch.Publish(exchange, string(ev.Type), false, false, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func persistentJSON(body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
}
