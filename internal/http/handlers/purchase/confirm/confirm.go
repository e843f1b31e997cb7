// Package confirm применяет проведённый платёж к аккаунту.
package confirm

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

// Request запрос на подтверждение платежа.
type Request struct {
	PaymentRef string `json:"payment_ref" validate:"required,max=64" example:"2d8f6c3a-000f-5000-9000-1b2c3d4e5f60"`
}

// Service подтверждение покупок.
type Service interface {
	Confirm(ctx context.Context, paymentRef, claimedAccountID string) (*models.PurchaseResult, error)
}

// Handler обрабатывает подтверждение покупки.
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
// @Summary Подтвердить покупку
// @Description Проверяет платёж в шлюзе и начисляет кредиты ровно один раз. Повторный вызов возвращает тот же результат.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body Request true "Платёж"
// @Success 200 {object} models.PurchaseResult
// @Failure 400 {object} response.ErrorResponse "Платёж не проведён или сумма не совпадает"
// @Failure 403 {object} response.ErrorResponse "Платёж другого аккаунта"
// @Failure 410 {object} response.ErrorResponse "Слоты закончились, платёж возвращён"
// @Failure 502 {object} response.ErrorResponse "Шлюз недоступен, повторите запрос"
// @Router /purchases/confirm [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.confirm"
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

	res, err := h.service.Confirm(r.Context(), req.PaymentRef, accountID)
	if err != nil {
		log.Info("confirmation rejected", slog.String("payment_ref", req.PaymentRef), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
