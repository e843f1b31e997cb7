// Package bootstrap собирает общие для всех процессов зависимости:
// хранилище, кэш, публикацию событий и сервисы кредитного журнала.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/credit-ledger/internal/cache"
	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/migrations"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
	"github.com/magabrotheeeer/credit-ledger/internal/services/bonus"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/credit-ledger/internal/services/notify"
	"github.com/magabrotheeeer/credit-ledger/internal/services/purchase"
	"github.com/magabrotheeeer/credit-ledger/internal/services/refund"
	"github.com/magabrotheeeer/credit-ledger/internal/services/slots"
	"github.com/magabrotheeeer/credit-ledger/internal/services/transactionlog"
	"github.com/magabrotheeeer/credit-ledger/internal/storage"
	"github.com/magabrotheeeer/credit-ledger/internal/storage/memstore"
)

// MemoryDSN строка подключения, включающая хранилище в памяти (локальный запуск и демо).
const MemoryDSN = "memory://"

// Store всё, что сервисам нужно от хранилища.
type Store interface {
	ledger.Repository
	transactionlog.Repository
	slots.Repository
	refund.Repository
	purchase.Referrals
	purchase.Plans
	Ping(ctx context.Context) error
	Close() error
}

// OpenStore открывает PostgreSQL и применяет миграции, либо хранилище в памяти для MemoryDSN.
func OpenStore(cfg *config.Config, log *slog.Logger) (Store, error) {
	const op = "bootstrap.OpenStore"
	if strings.HasPrefix(cfg.StorageConnectionString, MemoryDSN) {
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// OpenCache подключает redis. Недоступный redis не мешает запуску: кэш просто отключается.
func OpenCache(ctx context.Context, cfg config.RedisConnection, log *slog.Logger) *cache.Cache {
	if cfg.AddressRedis == "" {
		return nil
	}
	c, err := cache.InitServer(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, slot availability is read from the store", sl.Err(err))
		return nil
	}
	return c
}

// Broker соединение с RabbitMQ и канал с объявленной топологией уведомлений.
type Broker struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// OpenBroker подключается к брокеру и объявляет очереди уведомлений.
func OpenBroker(cfg config.RabbitMQ) (*Broker, error) {
	const op = "bootstrap.OpenBroker"
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Broker{Conn: conn, Ch: ch}, nil
}

// Close закрывает канал и соединение.
func (b *Broker) Close(log *slog.Logger) {
	if b == nil {
		return
	}
	if err := b.Ch.Close(); err != nil {
		log.Error("failed to close channel", sl.Err(err))
	}
	if err := b.Conn.Close(); err != nil {
		log.Error("failed to close connection", sl.Err(err))
	}
}

// Publisher выбирает, куда публиковать события: в брокер или, без него, в лог.
func Publisher(broker *Broker, log *slog.Logger) notify.Publisher {
	if broker == nil {
		return notify.NewLogPublisher(log)
	}
	return notify.NewAMQPPublisher(broker.Ch)
}

// Services сервисы кредитного журнала поверх одного хранилища.
type Services struct {
	Catalog     *catalog.Catalog
	Journal     *transactionlog.Service
	Ledger      *ledger.Ledger
	Slots       *slots.Allocator
	Compensator *refund.Compensator
	Purchases   *purchase.Service
	Bonus       *bonus.Service
	Notifier    *notify.Notifier
	Gateway     *paymentprovider.Client
}

// NewServices связывает сервисы между собой. c может быть nil.
func NewServices(cfg *config.Config, log *slog.Logger, store Store, c *cache.Cache, pub notify.Publisher) (*Services, error) {
	const op = "bootstrap.NewServices"
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var slotCache slots.Cache
	if c != nil {
		slotCache = c
	}

	gateway := paymentprovider.NewClient(cfg.Gateway)
	notifier := notify.New(log, pub)
	journal := transactionlog.New(log, store)
	led := ledger.New(log, store, journal, cat.SignupBonus())
	allocator := slots.New(log, store, cat, slotCache, cfg.RedisConnection.SlotsTTL)
	compensator := refund.New(log, store, gateway, notifier, cfg.RefundPolicy)

	purchases := purchase.New(log, purchase.Deps{
		Gateway:     gateway,
		Ledger:      led,
		Journal:     journal,
		Allocator:   allocator,
		Compensator: compensator,
		Referrals:   store,
		Plans:       store,
		Notifier:    notifier,
		Catalog:     cat,
	})

	return &Services{
		Catalog:     cat,
		Journal:     journal,
		Ledger:      led,
		Slots:       allocator,
		Compensator: compensator,
		Purchases:   purchases,
		Bonus:       bonus.New(log, led, notifier, cfg.Catalog.DailyBonus),
		Notifier:    notifier,
		Gateway:     gateway,
	}, nil
}
