// Package paymentprovider клиент REST API платёжного шлюза в стиле ЮKassa:
// создание платежа, получение статуса и возврат.
//
// Сетевые ошибки, таймауты и ответы 5xx оборачиваются в ErrGatewayUnavailable,
// ответы 4xx возвращаются как *APIError.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Client клиент платёжного шлюза.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	returnURL  string
	httpClient *http.Client
}

// NewClient создаёт клиент по настройкам шлюза.
func NewClient(cfg config.Gateway) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		apiURL:     cfg.GatewayURL,
		returnURL:  cfg.ReturnURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ReturnURL адрес возврата покупателя после оплаты.
func (c *Client) ReturnURL() string {
	return c.returnURL
}

func (c *Client) do(ctx context.Context, method, path, idempotenceKey string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayLatency.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: %w", models.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.GatewayLatency.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: unexpected status %s", models.ErrGatewayUnavailable, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
			_ = json.Unmarshal(raw, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreatePayment создаёт платёж. idempotenceKey защищает от двойного создания при повторе.
func (c *Client) CreatePayment(ctx context.Context, reqParams CreatePaymentRequest, idempotenceKey string) (*Payment, error) {
	const op = "paymentprovider.CreatePayment"
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", idempotenceKey, reqParams, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// RetrievePayment возвращает текущее состояние платежа.
func (c *Client) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "paymentprovider.RetrievePayment"
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), "", nil, &p); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// IssueRefund возвращает платёж paymentID полностью. Ключ идемпотентности равен
// paymentID, поэтому повторные вызовы не создают второй возврат.
func (c *Client) IssueRefund(ctx context.Context, paymentID, reason string) (*Refund, error) {
	const op = "paymentprovider.IssueRefund"
	p, err := c.RetrievePayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var r Refund
	req := RefundRequest{PaymentID: paymentID, Amount: p.Amount, Description: reason}
	if err := c.do(ctx, http.MethodPost, "/refunds", "refund-"+paymentID, req, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if r.Status == StatusCanceled {
		return nil, fmt.Errorf("%s: refund %s canceled by gateway", op, r.ID)
	}
	return &r, nil
}
