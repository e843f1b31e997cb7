// Package refundretrier периодически повторяет незавершённые компенсирующие возвраты.
package refundretrier

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/app/bootstrap"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/services/refund"
)

// Retrier проход по журналу возвратов.
type Retrier interface {
	RetryPending(ctx context.Context) (refund.Report, error)
}

// App воркер повторов.
type App struct {
	retrier  Retrier
	interval time.Duration
	store    bootstrap.Store
	broker   *bootstrap.Broker
	logger   *slog.Logger
}

// New подключает хранилище и, если доступен, брокер для алертов оператору.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := bootstrap.OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	broker, err := bootstrap.OpenBroker(cfg.RabbitMQ)
	if err != nil {
		logger.Warn("rabbitmq unavailable, operator alerts are only logged", sl.Err(err))
		broker = nil
	}

	svc, err := bootstrap.NewServices(cfg, logger, store, nil, bootstrap.Publisher(broker, logger))
	if err != nil {
		broker.Close(logger)
		_ = store.Close()
		return nil, err
	}

	return &App{
		retrier:  svc.Compensator,
		interval: cfg.RetryInterval,
		store:    store,
		broker:   broker,
		logger:   logger,
	}, nil
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		a.broker.Close(a.logger)
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close store", sl.Err(err))
		}
	}()

	Loop(ctx, a.logger, a.retrier, a.interval)
	a.logger.Info("shutting down refund retrier")
	return nil
}

// Loop вызывает RetryPending каждые interval, пока ctx не отменён.
func Loop(ctx context.Context, log *slog.Logger, r Retrier, interval time.Duration) {
	const op = "refundretrier.Loop"
	log = log.With(slog.String("op", op))
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	sweep := func() {
		report, err := r.RetryPending(ctx)
		if err != nil {
			log.Error("refund sweep failed", sl.Err(err))
			return
		}
		if report.Checked > 0 {
			log.Info("refund sweep done",
				slog.Int("checked", report.Checked),
				slog.Int("succeeded", report.Succeeded),
				slog.Int("failed", report.Failed),
				slog.Int("exhausted", report.Exhausted),
			)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
