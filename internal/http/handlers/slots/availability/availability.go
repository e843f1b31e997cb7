// Package availability отдаёт занятость лайфтайм-слотов для витрины.
package availability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/credit-ledger/internal/http/response"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Service read-модель доступности.
type Service interface {
	Availability(ctx context.Context) ([]models.SlotAvailability, error)
}

// Handler обрабатывает запрос доступности слотов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Доступность лайфтайм-слотов
// @Description Проданные и оставшиеся слоты по тарифам и всего. Значение кэшируется на несколько секунд.
// @Tags Slots
// @Produce  json
// @Success 200 {array} models.SlotAvailability
// @Failure 500 {object} response.ErrorResponse
// @Router /lifetime-slots [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.slots.availability"

	out, err := h.service.Availability(r.Context())
	if err != nil {
		h.log.Error("failed to read availability", slog.String("op", op), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=5")
	render.JSON(w, r, response.StatusOKWithData(out))
}
