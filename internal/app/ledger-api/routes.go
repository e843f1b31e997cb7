// Package ledgerapi собирает HTTP API кредитного журнала.
package ledgerapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация OpenAPI-описания для /docs/.
	_ "github.com/magabrotheeeer/credit-ledger/docs"
	"github.com/magabrotheeeer/credit-ledger/internal/app/bootstrap"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/accounts/open"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/admin/grant"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/bonus/daily"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/credits/balance"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/credits/debit"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/credits/refund"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/health"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/purchase/checkout"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/purchase/confirm"
	"github.com/magabrotheeeer/credit-ledger/internal/http/handlers/slots/availability"
	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc *bootstrap.Services, tokens middlewarectx.TokenParser, checks map[string]health.Pinger) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	userLimiter := middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	publicLimiter := middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokens, logger))
			r.Use(userLimiter.Middleware(logger))
			r.Post("/accounts", open.New(logger, svc.Ledger).ServeHTTP)
			r.Post("/purchases/checkout", checkout.New(logger, svc.Purchases).ServeHTTP)
			r.Post("/purchases/confirm", confirm.New(logger, svc.Purchases).ServeHTTP)
			r.Post("/credits/debit", debit.New(logger, svc.Ledger).ServeHTTP)
			r.Post("/credits/refund", refund.New(logger, svc.Ledger).ServeHTTP)
			r.Get("/credits/balance", balance.New(logger, svc.Ledger).ServeHTTP)

			dailyBonus := daily.New(logger, svc.Bonus)
			r.Get("/bonus/daily", dailyBonus.Status)
			r.Post("/bonus/daily", dailyBonus.Claim)
		})

		// Открытые конечные точки
		r.With(publicLimiter.Middleware(logger)).Get("/lifetime-slots", availability.New(logger, svc.Slots).ServeHTTP)
		r.Post("/payments/webhook", paymentwebhook.New(logger, svc.Purchases, cfg.WebhookSecret).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AdminMiddleware(cfg.SecretHash, logger))
			r.Post("/admin/credits", grant.New(logger, svc.Ledger).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
