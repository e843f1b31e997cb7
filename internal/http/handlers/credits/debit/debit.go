// Package debit списывает кредиты перед дорогой операцией.
package debit

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
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Request запрос на списание.
type Request struct {
	Amount      int64  `json:"amount" validate:"gt=0,max=100000" example:"3"`
	Description string `json:"description,omitempty" validate:"max=256" example:"image generation"`
}

// Result ответ на списание. EntryID передаётся в /credits/refund при неудаче операции.
type Result struct {
	EntryID string `json:"entry_id"`
	Balance int64  `json:"balance"`
}

// Service списание кредитов.
type Service interface {
	Reserve(ctx context.Context, accountID string, amount int64, kind models.EntryKind, description string) (models.TransactionEntry, error)
}

// Handler обрабатывает списание кредитов.
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
// @Summary Списать кредиты
// @Description Атомарно списывает кредиты. При нехватке баланса ничего не списывается.
// @Tags Credits
// @Accept  json
// @Produce  json
// @Param request body Request true "Сумма"
// @Success 200 {object} Result
// @Failure 402 {object} response.ErrorResponse "Недостаточно кредитов"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /credits/debit [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.debit"
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

	entry, err := h.service.Reserve(r.Context(), accountID, req.Amount, models.KindGeneration, req.Description)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(Result{EntryID: entry.ID, Balance: entry.BalanceAfter}))
}
