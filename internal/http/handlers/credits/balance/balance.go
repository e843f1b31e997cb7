// Package balance отдаёт баланс аккаунта и последние записи журнала.
package balance

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Result баланс и история.
type Result struct {
	Balance          int64                     `json:"balance"`
	Tier             models.Tier               `json:"tier"`
	IsLifetimeHolder bool                      `json:"is_lifetime_holder"`
	Transactions     []models.TransactionEntry `json:"transactions"`
}

// Service чтение аккаунта.
type Service interface {
	Account(ctx context.Context, accountID string) (*models.Account, error)
	History(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error)
}

// Handler обрабатывает запрос баланса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Баланс
// @Tags Credits
// @Produce  json
// @Param limit query int false "Число записей журнала (по умолчанию 50)"
// @Success 200 {object} Result
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Router /credits/balance [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.balance"
	log := h.log.With(slog.String("op", op))

	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid limit"))
			return
		}
		limit = n
	}

	acc, err := h.service.Account(r.Context(), accountID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	history, err := h.service.History(r.Context(), accountID, limit)
	if err != nil {
		log.Error("failed to read history", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	if history == nil {
		history = []models.TransactionEntry{}
	}

	render.JSON(w, r, response.StatusOKWithData(Result{
		Balance:          acc.Balance,
		Tier:             acc.Tier,
		IsLifetimeHolder: acc.IsLifetimeHolder,
		Transactions:     history,
	}))
}
