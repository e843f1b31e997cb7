// Package paymentwebhook принимает уведомления платёжного шлюза.
//
// Уведомление только запускает то же идемпотентное подтверждение, что и клиент:
// состояние платежа всё равно перечитывается из шлюза.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
)

// SignatureHeader заголовок с подписью тела уведомления.
const SignatureHeader = "X-Api-Signature"

const maxBodySize = 1 << 20

// События шлюза. Остальные подтверждаются без обработки.
const (
	PaymentSucceeded      = "payment.succeeded"
	SubscriptionCancelled = "subscription.canceled"
)

// Service подтверждение покупок и отмена подписок по данным шлюза.
type Service interface {
	ConfirmFromGateway(ctx context.Context, paymentRef string) (*models.PurchaseResult, error)
	CancelPlan(ctx context.Context, accountID, subscriptionRef string) (*models.Account, error)
}

// Handler обрабатывает уведомления шлюза.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload тело уведомления.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Sign возвращает подпись тела в формате заголовка X-Api-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Уведомление платёжного шлюза
// @Description Подписанное HMAC-SHA256 уведомление. payment.succeeded запускает подтверждение покупки,
// @Description subscription.canceled снимает тариф подписки.
// @Tags Payments
// @Accept  json
// @Param X-Api-Signature header string true "base64(HMAC-SHA256(body))"
// @Success 200
// @Failure 401 "Неверная подпись"
// @Failure 500 "Временная ошибка, шлюз повторит уведомление"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	log = log.With(slog.String("event", payload.Event), slog.String("payment_ref", payload.Object.ID))

	switch strings.ToLower(payload.Event) {
	case PaymentSucceeded:
		_, err = h.service.ConfirmFromGateway(r.Context(), payload.Object.ID)
	case SubscriptionCancelled:
		_, err = h.service.CancelPlan(r.Context(), payload.Object.Metadata[paymentprovider.MetaAccountID], payload.Object.ID)
	default:
		log.Info("ignored webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		if retryable(err) {
			log.Error("failed to process webhook, gateway will retry", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// повтор уведомления не изменит исход
		log.Warn("webhook payment rejected", sl.Err(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	log.Info("webhook processed successfully")
	w.WriteHeader(http.StatusOK)
}

func retryable(err error) bool {
	for _, final := range []error{
		models.ErrPaymentNotSettled,
		models.ErrAccountMismatch,
		models.ErrSoldOutRefunded,
		models.ErrAlreadyLifetime,
		models.ErrUnknownProduct,
		models.ErrAmountMismatch,
		models.ErrAccountNotFound,
		models.ErrNotFound,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}
