// Package refund возвращает кредиты за неудавшуюся операцию.
package refund

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
)

// Request запрос на возврат списания.
type Request struct {
	EntryID string `json:"entry_id" validate:"required,uuid"`
	Reason  string `json:"reason,omitempty" validate:"max=256" example:"provider timeout"`
}

// Result баланс после возврата.
type Result struct {
	Balance int64 `json:"balance"`
}

// Service возврат списаний.
type Service interface {
	RefundDebit(ctx context.Context, accountID, debitID, reason string) (int64, error)
}

// Handler обрабатывает возврат кредитов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вернуть кредиты
// @Description Возвращает сумму списания entry_id. Каждое списание возвращается не более одного раза.
// @Tags Credits
// @Accept  json
// @Produce  json
// @Param request body Request true "Списание"
// @Success 200 {object} Result
// @Failure 404 {object} response.ErrorResponse "Списание не найдено"
// @Failure 409 {object} response.ErrorResponse "Уже возвращено"
// @Router /credits/refund [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.refund"
	log := h.log.With(slog.String("op", op))

	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	balance, err := h.service.RefundDebit(r.Context(), accountID, req.EntryID, req.Reason)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	log.Info("debit refunded", slog.String("account_id", accountID), slog.String("entry_id", req.EntryID))
	render.JSON(w, r, response.StatusOKWithData(Result{Balance: balance}))
}
