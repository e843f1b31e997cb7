// Package checkout создаёт платёж за продукт каталога.
package checkout

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

// Request запрос на оплату продукта.
type Request struct {
	Product string `json:"product" validate:"required" example:"pack_75"`
}

// Service создание платежей.
type Service interface {
	Checkout(ctx context.Context, accountID, productKey string) (*models.Checkout, error)
}

// Handler обрабатывает создание платежа.
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
// @Summary Создать платёж
// @Description Создаёт в шлюзе платёж за пакет кредитов или лайфтайм-тариф. Цена берётся из каталога.
// @Tags Purchases
// @Accept  json
// @Produce  json
// @Param request body Request true "Продукт"
// @Success 200 {object} models.Checkout
// @Failure 400 {object} response.ErrorResponse "Неизвестный продукт"
// @Failure 401 {object} response.ErrorResponse "Нет токена"
// @Failure 409 {object} response.ErrorResponse "Лайфтайм уже куплен"
// @Failure 410 {object} response.ErrorResponse "Слоты закончились"
// @Failure 502 {object} response.ErrorResponse "Шлюз недоступен"
// @Router /purchases/checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.checkout"
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

	out, err := h.service.Checkout(r.Context(), accountID, req.Product)
	if err != nil {
		if status, _ := response.FromError(err); status >= http.StatusInternalServerError {
			log.Error("checkout failed", slog.String("account_id", accountID), sl.Err(err))
		}
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(out))
}
