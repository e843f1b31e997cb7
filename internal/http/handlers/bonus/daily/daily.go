// Package daily отдаёт состояние ежедневного бонуса и начисляет его.
package daily

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/bonus"
)

// Service ежедневные бонусы.
type Service interface {
	Status(ctx context.Context, accountID string) (*bonus.Status, error)
	ClaimDaily(ctx context.Context, accountID string) (*bonus.Claim, error)
}

// Handler обрабатывает запросы ежедневного бонуса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
	}
	return accountID, ok
}

// Status godoc
// @Summary Состояние ежедневного бонуса
// @Tags Bonus
// @Produce  json
// @Success 200 {object} bonus.Status
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Router /bonus/daily [get]
// @Security BearerAuth
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bonus.status"

	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	st, err := h.service.Status(r.Context(), accountID)
	if err != nil {
		if !errors.Is(err, models.ErrAccountNotFound) {
			h.log.Error("failed to read bonus status", slog.String("op", op), sl.Err(err))
		}
		response.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(st))
}

// Claim godoc
// @Summary Получить ежедневный бонус
// @Description Один раз в сутки (UTC). Серия дней увеличивает бонус.
// @Tags Bonus
// @Produce  json
// @Success 200 {object} bonus.Claim
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Failure 409 {object} response.ErrorResponse "Бонус за сегодня уже получен"
// @Router /bonus/daily [post]
// @Security BearerAuth
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bonus.claim"
	log := h.log.With(slog.String("op", op))

	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	claim, err := h.service.ClaimDaily(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBonusClaimed), errors.Is(err, models.ErrAccountNotFound):
			log.Info("daily bonus rejected", slog.String("account_id", accountID), sl.Err(err))
		default:
			log.Error("failed to grant daily bonus", sl.Err(err))
		}
		response.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(claim))
}
