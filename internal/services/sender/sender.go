// Package sender превращает события кредитного журнала в e-mail уведомления.
// Ошибки доставки не влияют на состояние баланса: событие просто возвращается в очередь.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/smtp"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Service отправляет письма по событиям из брокера.
type Service struct {
	transport     smtp.TransportInterface
	operatorEmail string
	log           *slog.Logger
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, transport smtp.TransportInterface, operatorEmail string) *Service {
	return &Service{
		transport:     transport,
		operatorEmail: operatorEmail,
		log:           log,
	}
}

// Handle обрабатывает тело сообщения из любой очереди уведомлений.
// Нечитаемые сообщения и события без получателя подтверждаются без отправки.
func (s *Service) Handle(body []byte) error {
	const op = "sender.Handle"
	log := s.log.With(slog.String("op", op))

	var ev models.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("failed to unmarshal event, dropping", sl.Err(err))
		return nil
	}

	to, subject, text, ok := s.compose(ev)
	if !ok {
		log.Warn("event has no recipient, skipping", slog.String("type", string(ev.Type)), slog.String("payment_ref", ev.PaymentRef))
		return nil
	}
	if err := s.sendEmail(to, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) compose(ev models.Event) (to, subject, text string, ok bool) {
	switch ev.Type {
	case models.EventCreditsGranted:
		subject = "Кредиты зачислены"
		text = fmt.Sprintf("На ваш счёт зачислено кредитов: %d.\nТекущий баланс: %d.", ev.Credits, ev.Balance)
		return ev.Email, subject, text, ev.Email != ""
	case models.EventPurchaseConfirmed:
		subject = "Покупка подтверждена"
		text = fmt.Sprintf("Платёж %s подтверждён.\nЗачислено кредитов: %d, баланс: %d, тариф: %s.", ev.PaymentRef, ev.Credits, ev.Balance, ev.Tier)
		return ev.Email, subject, text, ev.Email != ""
	case models.EventPurchaseRefunded:
		subject = "Места закончились, платёж возвращён"
		text = fmt.Sprintf("К сожалению, все места по предложению уже распроданы.\nПлатёж %s возвращён полностью.", ev.PaymentRef)
		return ev.Email, subject, text, ev.Email != ""
	case models.EventRefundFailed:
		subject = "[ledger] возврат не выполнен: " + ev.PaymentRef
		text = fmt.Sprintf("Платёж: %s\nАккаунт: %s\nПричина: %s\nТребуется ручной возврат.", ev.PaymentRef, ev.AccountID, ev.Reason)
		return s.operatorEmail, subject, text, s.operatorEmail != ""
	default:
		return "", "", "", false
	}
}

func (s *Service) sendEmail(to, subject, bodyText string) error {
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}

	s.log.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}
