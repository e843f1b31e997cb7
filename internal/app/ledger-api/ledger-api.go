package ledgerapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/credit-ledger/internal/app/bootstrap"
	"github.com/magabrotheeeer/credit-ledger/internal/cache"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	grpchealth "github.com/magabrotheeeer/credit-ledger/internal/grpc/health"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/health"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

// App HTTP API кредитного журнала с gRPC health-check сервером.
type App struct {
	server   *http.Server
	health   *grpchealth.Server
	grpcAddr string
	logger   *slog.Logger
	store    bootstrap.Store
	cache    *cache.Cache
	broker   *bootstrap.Broker
}

// New поднимает зависимости, засевает пулы слотов из каталога и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := bootstrap.OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	cacheRedis := bootstrap.OpenCache(ctx, cfg.RedisConnection, logger)

	broker, err := bootstrap.OpenBroker(cfg.RabbitMQ)
	if err != nil {
		logger.Warn("rabbitmq unavailable, events are only logged", sl.Err(err))
		broker = nil
	}

	app := &App{
		grpcAddr: cfg.AddressGRPC,
		logger:   logger,
		store:    store,
		cache:    cacheRedis,
		broker:   broker,
	}

	svc, err := bootstrap.NewServices(cfg, logger, store, cacheRedis, bootstrap.Publisher(broker, logger))
	if err != nil {
		app.close()
		return nil, err
	}
	if err := svc.Slots.Seed(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("seed slot pools: %w", err)
	}

	checks := map[string]health.Pinger{"store": store}
	grpcChecks := map[string]grpchealth.Pinger{"store": store}
	if cacheRedis != nil {
		checks["redis"] = cacheRedis
		grpcChecks["redis"] = cacheRedis
	}

	if cfg.JWTSecretKey == "" {
		logger.Warn("jwt secret is empty, every authenticated request will be rejected")
	}
	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc, tokens, checks)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	app.health = grpchealth.New(logger, cfg.CheckInterval, grpcChecks)

	return app, nil
}

// Run обслуживает HTTP и gRPC до отмены ctx, затем корректно останавливает оба сервера.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.health.Serve(gctx, lis)
	})

	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})

	return g.Wait()
}

func (a *App) close() {
	a.broker.Close(a.logger)
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", sl.Err(err))
	}
}
