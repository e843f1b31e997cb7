// Package health поднимает стандартный gRPC health-check сервис
// (grpc.health.v1) для проб оркестратора.
//
// Статус пересчитывается по таймеру: SERVING, пока отвечают все зависимости.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

// ServiceName имя сервиса в health-check запросах.
const ServiceName = "credit-ledger"

const pingTimeout = 2 * time.Second

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server gRPC сервер с health-сервисом.
type Server struct {
	grpc     *grpc.Server
	health   *grpchealth.Server
	checks   map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// New создаёт сервер. nil-зависимости пропускаются.
func New(log *slog.Logger, interval time.Duration, checks map[string]Pinger) *Server {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		grpc:     srv,
		health:   hs,
		checks:   filtered,
		interval: interval,
		log:      log,
	}
}

// Check опрашивает зависимости и обновляет статус. Возвращает итоговый статус.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	const op = "health.Check"
	status := healthpb.HealthCheckResponse_SERVING
	for name, p := range s.checks {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn("dependency is down", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve обслуживает lis до отмены ctx.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health server starting", slog.String("address", lis.Addr().String()))
		if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			return <-errCh
		}
	}
}
