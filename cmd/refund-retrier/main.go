// Package main содержит точку входа воркера повторных возвратов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	refundretrier "github.com/magabrotheeeer/credit-ledger/internal/app/refund-retrier"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting refund-retrier", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := refundretrier.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize refund-retrier", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("refund-retrier stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}
