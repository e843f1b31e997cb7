// Package notify публикует события кредитного журнала для рассылки уведомлений.
// Ошибка публикации только логируется и никогда не откатывает состояние баланса.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Publisher доставляет событие в брокер.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// AMQPPublisher публикует события в обменник уведомлений с routing key, равным типу события.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       rabbitmq.Channel
	exchange string
}

// NewAMQPPublisher создаёт издателя поверх открытого канала.
func NewAMQPPublisher(ch rabbitmq.Channel) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: rabbitmq.ExchangeName}
}

// Publish публикует событие.
func (p *AMQPPublisher) Publish(ctx context.Context, event models.Event) error {
	const op = "notify.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := rabbitmq.PublishEvent(p.ch, p.exchange, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogPublisher пишет события в лог. Используется, когда брокер не настроен.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish логирует событие.
func (p *LogPublisher) Publish(_ context.Context, event models.Event) error {
	p.log.Info("notification event",
		slog.String("type", string(event.Type)),
		slog.String("account_id", event.AccountID),
		slog.String("payment_ref", event.PaymentRef))
	return nil
}

// Notifier публикует события, проглатывая ошибки брокера.
type Notifier struct {
	pub Publisher
	log *slog.Logger
}

// New создаёт Notifier.
func New(log *slog.Logger, pub Publisher) *Notifier {
	return &Notifier{pub: pub, log: log}
}

// Notify публикует событие. Время события проставляется, если не задано.
func (n *Notifier) Notify(ctx context.Context, event models.Event) {
	const op = "notify.Notify"
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := n.pub.Publish(ctx, event); err != nil {
		n.log.Error("failed to publish event",
			slog.String("op", op),
			slog.String("type", string(event.Type)),
			slog.String("payment_ref", event.PaymentRef),
			sl.Err(err))
	}
}
