// Package main Credit Ledger API
//
// @title           Credit Ledger API
// @version         1.0
// @description     Кредитный журнал, покупки и лайфтайм-слоты

// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey AdminSecret
// @in header
// @name X-Admin-Secret
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	ledgerapi "github.com/magabrotheeeer/credit-ledger/internal/app/ledger-api"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting ledger-api", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := ledgerapi.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("ledger-api stopped gracefully")
}
