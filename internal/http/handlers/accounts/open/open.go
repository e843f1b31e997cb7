// Package open открывает кредитный аккаунт при регистрации пользователя.
package open

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Request данные нового аккаунта. Пустой e-mail берётся из токена.
type Request struct {
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	ReferredBy string `json:"referred_by,omitempty" validate:"max=64"`
}

// Service открытие аккаунтов.
type Service interface {
	OpenAccount(ctx context.Context, accountID, email, referredBy string) (*models.Account, error)
}

// Handler обрабатывает открытие аккаунта.
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
// @Summary Открыть аккаунт
// @Description Открывает аккаунт с тарифом FREE и стартовым бонусом.
// @Tags Accounts
// @Accept  json
// @Produce  json
// @Param request body Request false "Данные аккаунта"
// @Success 201 {object} models.Account
// @Failure 409 {object} response.ErrorResponse "Аккаунт уже существует"
// @Router /accounts [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.accounts.open"
	log := h.log.With(slog.String("op", op))

	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
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
	if req.Email == "" {
		req.Email = middlewarectx.EmailFromContext(r.Context())
	}

	acc, err := h.service.OpenAccount(r.Context(), accountID, req.Email, req.ReferredBy)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(acc))
}
