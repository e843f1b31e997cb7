// Package middlewarectx содержит HTTP middleware: проверку bearer-токенов,
// ограничение частоты запросов по аккаунту и доступ к административным операциям.
//
// Токены выпускает внешний сервис аутентификации; здесь проверяется только
// подпись и срок действия, а идентификатор аккаунта кладётся в контекст.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AccountID ключ идентификатора аккаунта в контексте
	AccountID Key = "account_id"
	// Email ключ e-mail аккаунта в контексте
	Email Key = "email"
)

// TokenParser проверяет bearer-токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware проверяет JWT в заголовке Authorization и кладёт данные аккаунта в контекст.
// При ошибке отвечает 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), AccountID, claims.AccountID)
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext возвращает идентификатор аккаунта, положенный JWTMiddleware.
func AccountFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountID).(string)
	return id, ok && id != ""
}

// EmailFromContext возвращает e-mail аккаунта из токена.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(Email).(string)
	return email
}
