package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/secret"
)

// AdminSecretHeader заголовок с секретом администратора.
const AdminSecretHeader = "X-Admin-Secret"

// AdminMiddleware пропускает запросы с секретом, совпадающим с bcrypt-хэшем secretHash.
// Если хэш не настроен, административные операции закрыты.
func AdminMiddleware(secretHash string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminSecretHeader)
			if presented == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("admin secret required"))
				return
			}
			if err := secret.Verify(secretHash, presented); err != nil {
				log.Warn("admin secret rejected", slog.String("remote_addr", r.RemoteAddr))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
