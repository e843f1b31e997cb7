// Package sender воркер, доставляющий события кредитного журнала по e-mail.
package sender

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/credit-ledger/internal/app/bootstrap"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/credit-ledger/internal/services/sender"
)

// App потребитель очередей уведомлений.
type App struct {
	broker        *bootstrap.Broker
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и настраивает SMTP-транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	broker, err := bootstrap.OpenBroker(cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.New(logger, transport, cfg.Operator)

	return &App{
		broker:        broker,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run потребляет все очереди уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.broker.Ch, q.QueueName, a.senderService.Handle); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), slog.Any("err", err))
			a.broker.Close(a.logger)
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	a.broker.Close(a.logger)
	return nil
}
