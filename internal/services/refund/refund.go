// Package refund компенсирует проведённые платежи, которым не досталось слота.
//
// Каждая компенсация журналируется до обращения к шлюзу. Лайфтайм, выданный
// платежом, снимается всегда, даже если возврат денег не удался. Неудачные
// возвраты остаются в журнале со статусом FAILED и повторяются фоновым воркером.
package refund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/paymentprovider"
)

const sweepBatch = 100

// Repository журнал возвратов и снятие лайфтайма.
type Repository interface {
	CreateRefund(ctx context.Context, attempt models.RefundAttempt) (bool, error)
	GetRefund(ctx context.Context, paymentRef string) (*models.RefundAttempt, error)
	UpdateRefund(ctx context.Context, paymentRef string, status models.RefundStatus, attempts int, lastErr string) error
	ListUnsettledRefunds(ctx context.Context, limit int) ([]models.RefundAttempt, error)
	RevokeLifetime(ctx context.Context, paymentRef string) (bool, error)
}

// Gateway возврат платежа в шлюзе. Повторный вызов для того же платежа идемпотентен.
type Gateway interface {
	IssueRefund(ctx context.Context, paymentID, reason string) (*paymentprovider.Refund, error)
}

// Notifier публикует оповещения оператору.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// Report итог одного прохода по журналу.
type Report struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// Compensator выполняет компенсирующие возвраты.
type Compensator struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
	policy   config.RefundPolicy
	log      *slog.Logger
}

// New создаёт компенсатор.
func New(log *slog.Logger, repo Repository, gateway Gateway, notifier Notifier, policy config.RefundPolicy) *Compensator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Compensator{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		policy:   policy,
		log:      log,
	}
}

// Compensate возвращает платёж paymentRef и снимает выданный им лайфтайм.
// Если шлюз так и не принял возврат, запись остаётся FAILED и возвращается ErrRefundFailed.
func (c *Compensator) Compensate(ctx context.Context, paymentRef, accountID, reason string) error {
	const op = "refund.Compensate"
	log := c.log.With(slog.String("op", op), slog.String("payment_ref", paymentRef), slog.String("account_id", accountID))

	created, err := c.repo.CreateRefund(ctx, models.RefundAttempt{
		PaymentRef: paymentRef,
		AccountID:  accountID,
		Reason:     reason,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	attempts := 0
	if !created {
		existing, err := c.repo.GetRefund(ctx, paymentRef)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if existing.Status == models.RefundSucceeded {
			log.Info("payment already refunded")
			return nil
		}
		attempts = existing.Attempts
	}

	var revokeErr error
	if revoked, err := c.repo.RevokeLifetime(ctx, paymentRef); err != nil {
		log.Error("failed to revoke lifetime entitlement", sl.Err(err))
		revokeErr = fmt.Errorf("%s: revoke: %w", op, err)
	} else if revoked {
		log.Warn("lifetime entitlement revoked")
	}

	if err := c.settle(ctx, log, paymentRef, accountID, reason, attempts, c.policy.MaxAttempts); err != nil {
		return errors.Join(fmt.Errorf("%s: %w", op, err), revokeErr)
	}
	return revokeErr
}

// settle делает до maxAttempts попыток и фиксирует исход в журнале.
func (c *Compensator) settle(ctx context.Context, log *slog.Logger, paymentRef, accountID, reason string, prior, maxAttempts int) error {
	made, lastErr := c.issue(ctx, log, paymentRef, reason, maxAttempts)

	status, msg := models.RefundSucceeded, ""
	if lastErr != nil {
		status, msg = models.RefundFailed, lastErr.Error()
	}
	if err := c.repo.UpdateRefund(ctx, paymentRef, status, made, msg); err != nil {
		log.Error("failed to update refund journal", sl.Err(err))
		if lastErr == nil {
			return err
		}
	}

	if lastErr != nil {
		log.Error("refund failed", slog.Int("attempts", prior+made), sl.Err(lastErr))
		c.alert(ctx, paymentRef, accountID, fmt.Sprintf("%s (attempts: %d): %s", reason, prior+made, msg))
		return fmt.Errorf("%w: %w", models.ErrRefundFailed, lastErr)
	}
	log.Info("payment refunded", slog.Int("attempts", prior+made))
	return nil
}

// issue повторяет возврат с экспоненциальной задержкой. Ответ 4xx не повторяется.
func (c *Compensator) issue(ctx context.Context, log *slog.Logger, paymentRef, reason string, maxAttempts int) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialInterval
	b.MaxInterval = c.policy.MaxInterval
	b.Multiplier = c.policy.Multiplier
	b.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		_, err := c.gateway.IssueRefund(ctx, paymentRef, reason)
		if err == nil {
			metrics.RefundAttempts.WithLabelValues("ok").Inc()
			return nil
		}
		var apiErr *paymentprovider.APIError
		if errors.As(err, &apiErr) {
			metrics.RefundAttempts.WithLabelValues("rejected").Inc()
			return backoff.Permanent(err)
		}
		metrics.RefundAttempts.WithLabelValues("error").Inc()
		log.Warn("refund attempt failed", slog.Int("attempt", attempts), sl.Err(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx))
	return attempts, err
}

func (c *Compensator) alert(ctx context.Context, paymentRef, accountID, reason string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, models.Event{
		Type:       models.EventRefundFailed,
		AccountID:  accountID,
		PaymentRef: paymentRef,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
}

// RetryPending повторяет незавершённые возвраты из журнала.
// Исчерпавшие лимит попыток записи не повторяются, по ним на каждом проходе
// публикуется оповещение оператору.
func (c *Compensator) RetryPending(ctx context.Context) (Report, error) {
	const op = "refund.RetryPending"
	log := c.log.With(slog.String("op", op))

	var report Report
	pending, err := c.repo.ListUnsettledRefunds(ctx, sweepBatch)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		report.Checked++
		rlog := log.With(slog.String("payment_ref", r.PaymentRef))

		left := c.policy.MaxTotalAttempts - r.Attempts
		if c.policy.MaxTotalAttempts > 0 && left <= 0 {
			report.Exhausted++
			rlog.Error("refund retries exhausted, operator action required", slog.Int("attempts", r.Attempts))
			c.alert(ctx, r.PaymentRef, r.AccountID, fmt.Sprintf("retries exhausted after %d attempts: %s", r.Attempts, r.LastError))
			continue
		}
		limit := c.policy.MaxAttempts
		if c.policy.MaxTotalAttempts > 0 && left < limit {
			limit = left
		}

		if _, err := c.repo.RevokeLifetime(ctx, r.PaymentRef); err != nil {
			rlog.Error("failed to revoke lifetime entitlement", sl.Err(err))
		}
		if err := c.settle(ctx, rlog, r.PaymentRef, r.AccountID, r.Reason, r.Attempts, limit); err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
	}

	metrics.RefundsPending.Set(float64(report.Failed + report.Exhausted))
	log.Info("refund sweep finished",
		slog.Int("checked", report.Checked),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("exhausted", report.Exhausted))
	return report, nil
}

// Lookup возвращает запись журнала по платежу или nil, если возврата не было.
func (c *Compensator) Lookup(ctx context.Context, paymentRef string) (*models.RefundAttempt, error) {
	const op = "refund.Lookup"
	r, err := c.repo.GetRefund(ctx, paymentRef)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// Pending возвращает незавершённые возвраты.
func (c *Compensator) Pending(ctx context.Context, limit int) ([]models.RefundAttempt, error) {
	const op = "refund.Pending"
	if limit <= 0 || limit > sweepBatch {
		limit = sweepBatch
	}
	out, err := c.repo.ListUnsettledRefunds(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
