// Package memstore хранит журнал кредитов в памяти процесса.
//
// Повторяет гарантии PostgreSQL-хранилища (условные обновления, уникальность
// (externalRef, kind), идемпотентные заявки на слоты) под одним мьютексом.
// Используется в тестах и при storage_connection_string = "memory://".
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// DSN строка подключения, выбирающая хранилище в памяти.
const DSN = "memory://"

type entryKey struct {
	ref  string
	kind models.EntryKind
}

type claimKey struct {
	pool string
	ref  string
}

// Store потокобезопасное хранилище в памяти.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	entries  []models.TransactionEntry
	byRef    map[entryKey]int
	pools    map[string]*models.SlotPool
	claims   map[claimKey]struct{}
	refunds  map[string]*models.RefundAttempt
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		byRef:    make(map[entryKey]int),
		pools:    make(map[string]*models.SlotPool),
		claims:   make(map[claimKey]struct{}),
		refunds:  make(map[string]*models.RefundAttempt),
	}
}

func ctxDone(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

func (s *Store) appendEntry(e models.TransactionEntry) error {
	if e.ExternalRef != nil {
		k := entryKey{ref: *e.ExternalRef, kind: e.Kind}
		if _, ok := s.byRef[k]; ok {
			return models.ErrDuplicate
		}
		s.byRef[k] = len(s.entries)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) hasRef(e models.TransactionEntry) bool {
	if e.ExternalRef == nil {
		return false
	}
	_, ok := s.byRef[entryKey{ref: *e.ExternalRef, kind: e.Kind}]
	return ok
}

// CreateAccount открывает аккаунт и записывает стартовое начисление.
func (s *Store) CreateAccount(ctx context.Context, acc models.Account, bonus *models.TransactionEntry) error {
	const op = "memstore.CreateAccount"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return fmt.Errorf("%s: %w", op, models.ErrAccountExists)
	}
	if bonus != nil {
		if s.hasRef(*bonus) {
			return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
		}
		b := *bonus
		b.BalanceAfter = acc.Balance
		_ = s.appendEntry(b)
	}
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.ID] = &acc
	return nil
}

// GetAccount возвращает копию аккаунта.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	const op = "memstore.GetAccount"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	cp := *acc
	return &cp, nil
}

// DebitAccount списывает -entry.Amount, если хватает баланса.
func (s *Store) DebitAccount(ctx context.Context, entry models.TransactionEntry) (int64, error) {
	const op = "memstore.DebitAccount"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[entry.AccountID]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	if acc.Balance < -entry.Amount {
		return 0, fmt.Errorf("%s: %w", op, models.ErrInsufficientCredits)
	}
	if s.hasRef(entry) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	acc.Balance += entry.Amount
	acc.UpdatedAt = time.Now().UTC()
	entry.BalanceAfter = acc.Balance
	_ = s.appendEntry(entry)
	return acc.Balance, nil
}

// CreditAccount начисляет entry.Amount и применяет effect.
func (s *Store) CreditAccount(ctx context.Context, entry models.TransactionEntry, effect models.CreditEffect) (int64, error) {
	const op = "memstore.CreditAccount"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[entry.AccountID]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	if s.hasRef(entry) {
		return 0, fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	acc.Balance += entry.Amount
	acc.ApplyTier(effect)
	if effect.Lifetime {
		acc.IsLifetimeHolder = true
		acc.LifetimePaymentRef = entry.ExternalRef
	}
	if effect.Streak != nil && effect.Streak.Days > 0 {
		day := effect.Streak.On.UTC()
		acc.LoginStreak = effect.Streak.Days
		acc.LastBonusOn = &day
	}
	acc.LifetimeSpend = acc.LifetimeSpend.Add(effect.Spend)
	acc.UpdatedAt = time.Now().UTC()
	entry.BalanceAfter = acc.Balance
	_ = s.appendEntry(entry)
	return acc.Balance, nil
}

// RevokeLifetime снимает лайфтайм, выданный платежом paymentRef.
func (s *Store) RevokeLifetime(ctx context.Context, paymentRef string) (bool, error) {
	const op = "memstore.RevokeLifetime"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := false
	for _, acc := range s.accounts {
		if acc.LifetimePaymentRef != nil && *acc.LifetimePaymentRef == paymentRef {
			acc.RevokeLifetime()
			acc.UpdatedAt = time.Now().UTC()
			revoked = true
		}
	}
	return revoked, nil
}

// ClearPlan снимает тариф подписки.
func (s *Store) ClearPlan(ctx context.Context, accountID string) (bool, error) {
	const op = "memstore.ClearPlan"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	if !acc.ClearPlan() {
		return false, nil
	}
	acc.UpdatedAt = time.Now().UTC()
	return true, nil
}

// MarkReferralRewarded ставит отметку о выданной реферальной награде.
func (s *Store) MarkReferralRewarded(ctx context.Context, accountID string) (bool, error) {
	const op = "memstore.MarkReferralRewarded"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok || acc.ReferralRewarded {
		return false, nil
	}
	acc.ReferralRewarded = true
	return true, nil
}

// InsertEntry записывает отдельную запись журнала.
func (s *Store) InsertEntry(ctx context.Context, entry models.TransactionEntry) error {
	const op = "memstore.InsertEntry"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[entry.AccountID]
	if !ok {
		return fmt.Errorf("%s: %w", op, models.ErrAccountNotFound)
	}
	entry.BalanceAfter = acc.Balance
	if err := s.appendEntry(entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindEntry ищет запись по (externalRef, kind).
func (s *Store) FindEntry(ctx context.Context, externalRef string, kind models.EntryKind) (*models.TransactionEntry, error) {
	const op = "memstore.FindEntry"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byRef[entryKey{ref: externalRef, kind: kind}]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	e := s.entries[i]
	return &e, nil
}

// GetEntry возвращает запись по идентификатору.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.TransactionEntry, error) {
	const op = "memstore.GetEntry"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
}

// ListEntries возвращает последние записи аккаунта, новые первыми.
func (s *Store) ListEntries(ctx context.Context, accountID string, limit int) ([]models.TransactionEntry, error) {
	const op = "memstore.ListEntries"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TransactionEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// UpsertPool создаёт пул или меняет его ёмкость.
func (s *Store) UpsertPool(ctx context.Context, tierID string, capacity int) error {
	const op = "memstore.UpsertPool"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pools[tierID]; ok {
		p.Capacity = capacity
		return nil
	}
	s.pools[tierID] = &models.SlotPool{TierID: tierID, Capacity: capacity}
	return nil
}

// ClaimSlot занимает слот пула для платежа, идемпотентно по (poolID, paymentRef).
func (s *Store) ClaimSlot(ctx context.Context, poolID, paymentRef string) (bool, error) {
	const op = "memstore.ClaimSlot"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, models.ErrPoolNotFound)
	}
	k := claimKey{pool: poolID, ref: paymentRef}
	if _, ok := s.claims[k]; ok {
		return true, nil
	}
	if p.Claimed >= p.Capacity {
		return false, nil
	}
	p.Claimed++
	s.claims[k] = struct{}{}
	return true, nil
}

// ReleaseSlot освобождает слот, занятый платежом.
func (s *Store) ReleaseSlot(ctx context.Context, poolID, paymentRef string) error {
	const op = "memstore.ReleaseSlot"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := claimKey{pool: poolID, ref: paymentRef}
	if _, ok := s.claims[k]; !ok {
		return nil
	}
	delete(s.claims, k)
	if p, ok := s.pools[poolID]; ok && p.Claimed > 0 {
		p.Claimed--
	}
	return nil
}

// GetPool возвращает копию пула.
func (s *Store) GetPool(ctx context.Context, poolID string) (*models.SlotPool, error) {
	const op = "memstore.GetPool"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrPoolNotFound)
	}
	cp := *p
	return &cp, nil
}

// ListPools возвращает пулы, упорядоченные по идентификатору.
func (s *Store) ListPools(ctx context.Context) ([]models.SlotPool, error) {
	const op = "memstore.ListPools"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.SlotPool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TierID < out[j].TierID })
	return out, nil
}

// CreateRefund журналирует возврат; false, если запись уже есть.
func (s *Store) CreateRefund(ctx context.Context, attempt models.RefundAttempt) (bool, error) {
	const op = "memstore.CreateRefund"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refunds[attempt.PaymentRef]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	attempt.Status = models.RefundPending
	attempt.Attempts = 0
	attempt.LastError = ""
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	s.refunds[attempt.PaymentRef] = &attempt
	return true, nil
}

// GetRefund возвращает копию записи журнала возвратов.
func (s *Store) GetRefund(ctx context.Context, paymentRef string) (*models.RefundAttempt, error) {
	const op = "memstore.GetRefund"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refunds[paymentRef]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// UpdateRefund фиксирует исход серии попыток.
func (s *Store) UpdateRefund(ctx context.Context, paymentRef string, status models.RefundStatus, attempts int, lastErr string) error {
	const op = "memstore.UpdateRefund"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refunds[paymentRef]
	if !ok {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	r.Status = status
	r.Attempts += attempts
	r.LastError = lastErr
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ListUnsettledRefunds возвращает возвраты, не завершившиеся успехом, с наименьшим числом попыток первыми.
func (s *Store) ListUnsettledRefunds(ctx context.Context, limit int) ([]models.RefundAttempt, error) {
	const op = "memstore.ListUnsettledRefunds"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RefundAttempt
	for _, r := range s.refunds {
		if r.Status != models.RefundSucceeded {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts < out[j].Attempts
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
