// Package grant начисляет кредиты вручную от имени администратора.
package grant

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
)

// Request запрос на ручное начисление.
// ExternalRef делает начисление идемпотентным, например номер обращения в поддержку.
type Request struct {
	AccountID   string `json:"account_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"gt=0,max=1000000"`
	Reason      string `json:"reason" validate:"required,max=256"`
	ExternalRef string `json:"external_ref,omitempty" validate:"max=128"`
}

// Result баланс после начисления.
type Result struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// Service начисление кредитов.
type Service interface {
	Credit(ctx context.Context, req ledger.CreditRequest) (int64, error)
}

// Handler обрабатывает ручное начисление.
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
// @Summary Начислить кредиты вручную
// @Description Записывает ADJUSTMENT. Требует заголовок X-Admin-Secret.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Начисление"
// @Success 200 {object} Result
// @Failure 403 {object} response.ErrorResponse "Неверный секрет"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Failure 409 {object} response.ErrorResponse "Начисление с этой ссылкой уже было"
// @Router /admin/credits [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.grant"
	log := h.log.With(slog.String("op", op))

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

	balance, err := h.service.Credit(r.Context(), ledger.CreditRequest{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Kind:        models.KindAdjustment,
		ExternalRef: req.ExternalRef,
		Description: "admin: " + req.Reason,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	log.Warn("manual credit granted",
		slog.String("account_id", req.AccountID),
		slog.Int64("amount", req.Amount),
		slog.String("reason", req.Reason))
	render.JSON(w, r, response.StatusOKWithData(Result{AccountID: req.AccountID, Balance: balance}))
}
