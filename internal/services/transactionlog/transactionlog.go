// Package transactionlog ведёт журнал записей, влияющих на баланс.
// Записи только добавляются; исправления оформляются новыми записями REFUND/ADJUSTMENT.
package transactionlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repository хранилище журнала.
type Repository interface {
	InsertEntry(ctx context.Context, entry models.TransactionEntry) error
	FindEntry(ctx context.Context, externalRef string, kind models.EntryKind) (*models.TransactionEntry, error)
	GetEntry(ctx context.Context, id string) (*models.TransactionEntry, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error)
}

// Service журнал транзакций.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создаёт журнал.
func New(log *slog.Logger, repo Repository) *Service {
	return &Service{repo: repo, log: log}
}

// NewEntry заполняет идентификатор и время новой записи.
func NewEntry(accountID string, amount int64, kind models.EntryKind, externalRef, description string) models.TransactionEntry {
	return models.TransactionEntry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		ExternalRef: models.Ref(externalRef),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// Record записывает отдельную запись без изменения баланса.
// Повтор (ExternalRef, Kind) возвращает ErrDuplicate.
func (s *Service) Record(ctx context.Context, entry models.TransactionEntry) (models.TransactionEntry, error) {
	const op = "transactionlog.Record"
	if !entry.Kind.Valid() {
		return models.TransactionEntry{}, fmt.Errorf("%s: unknown entry kind %q", op, entry.Kind)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			s.log.Info("duplicate entry ignored",
				slog.String("op", op),
				slog.String("external_ref", deref(entry.ExternalRef)),
				slog.String("kind", string(entry.Kind)))
		}
		return models.TransactionEntry{}, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

// FindByExternalRef возвращает запись по (externalRef, kind) или nil, если её нет.
func (s *Service) FindByExternalRef(ctx context.Context, externalRef string, kind models.EntryKind) (*models.TransactionEntry, error) {
	const op = "transactionlog.FindByExternalRef"
	e, err := s.repo.FindEntry(ctx, externalRef, kind)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// Get возвращает запись по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (*models.TransactionEntry, error) {
	const op = "transactionlog.Get"
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// List возвращает последние записи аккаунта. limit ограничивается сверху.
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error) {
	const op = "transactionlog.List"
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	entries, err := s.repo.ListEntries(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
