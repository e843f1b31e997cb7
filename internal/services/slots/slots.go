// Package slots допускает покупки лайфтайм-тарифов в пределах ёмкости пулов.
//
// Каждый тариф имеет свой пул, и все тарифы вместе ограничены общим пулом
// AGGREGATE. Слот занимается условным инкрементом claimed < capacity сначала
// в пуле тарифа, затем в общем; при отказе общего пула заявка тарифа снимается.
// Выигрывает первый зафиксированный инкремент, очереди и резервирования нет.
package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/catalog"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// AvailabilityKey ключ кэша с доступностью слотов.
const AvailabilityKey = "slots:availability"

// State состояние допуска платежа к слоту.
type State string

const (
	Pending             State = "PENDING"
	Admitted            State = "ADMITTED"
	RejectedSoldOut     State = "REJECTED_SOLD_OUT"
	OversoldCompensated State = "OVERSOLD_COMPENSATED"
)

// Decision итог допуска.
// OversoldCompensated означает, что платёж уже проведён и его нужно вернуть.
type Decision struct {
	TierID     string `json:"tier_id"`
	PaymentRef string `json:"payment_ref"`
	State      State  `json:"state"`
	FullPool   string `json:"full_pool,omitempty"`
}

// Admitted сообщает, получен ли слот.
func (d Decision) Admitted() bool { return d.State == Admitted }

// NeedsCompensation сообщает, что отказ случился после списания денег.
func (d Decision) NeedsCompensation() bool { return d.State == OversoldCompensated }

// Repository хранилище пулов.
type Repository interface {
	UpsertPool(ctx context.Context, tierID string, capacity int) error
	ClaimSlot(ctx context.Context, poolID, paymentRef string) (bool, error)
	ReleaseSlot(ctx context.Context, poolID, paymentRef string) error
	GetPool(ctx context.Context, poolID string) (*models.SlotPool, error)
	ListPools(ctx context.Context) ([]models.SlotPool, error)
}

// Cache кэш read-модели доступности.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Allocator распределитель слотов.
type Allocator struct {
	repo    Repository
	catalog *catalog.Catalog
	cache   Cache
	ttl     time.Duration
	log     *slog.Logger
}

// New создаёт распределитель. cache может быть nil, тогда доступность читается из хранилища.
func New(log *slog.Logger, repo Repository, cat *catalog.Catalog, cache Cache, ttl time.Duration) *Allocator {
	return &Allocator{
		repo:    repo,
		catalog: cat,
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

// Seed создаёт пулы из каталога. Ёмкость обновляется, занятые слоты не трогаются.
func (a *Allocator) Seed(ctx context.Context) error {
	const op = "slots.Seed"
	for _, deal := range a.catalog.LifetimeDeals() {
		if err := a.repo.UpsertPool(ctx, deal.PoolID(), deal.MaxSlots); err != nil {
			return fmt.Errorf("%s: %s: %w", op, deal.PoolID(), err)
		}
	}
	if err := a.repo.UpsertPool(ctx, models.AggregatePoolID, a.catalog.AggregateCapacity()); err != nil {
		return fmt.Errorf("%s: %s: %w", op, models.AggregatePoolID, err)
	}
	a.invalidate(ctx)
	a.log.Info("slot pools seeded", slog.String("op", op), slog.Int("aggregate", a.catalog.AggregateCapacity()))
	return nil
}

// Precheck проверяет до списания денег, что в пуле тарифа и общем пуле есть место.
// Результат не резервирует слот.
func (a *Allocator) Precheck(ctx context.Context, tierID string) error {
	const op = "slots.Precheck"
	for _, poolID := range []string{tierID, models.AggregatePoolID} {
		pool, err := a.repo.GetPool(ctx, poolID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if pool.Available() == 0 {
			metrics.SlotDecisions.WithLabelValues(tierID, "precheck_sold_out").Inc()
			return fmt.Errorf("%s: %s: %w", op, poolID, models.ErrSoldOut)
		}
	}
	return nil
}

// Admit занимает слот тарифа tierID для платежа paymentRef.
// Повторный вызов для того же платежа не занимает второй слот.
// settled указывает, проведён ли уже платёж: отказ после проведения даёт OversoldCompensated.
func (a *Allocator) Admit(ctx context.Context, tierID, paymentRef string, settled bool) (Decision, error) {
	const op = "slots.Admit"
	log := a.log.With(slog.String("op", op), slog.String("tier", tierID), slog.String("payment_ref", paymentRef))

	d := Decision{TierID: tierID, PaymentRef: paymentRef, State: Pending}

	ok, err := a.repo.ClaimSlot(ctx, tierID, paymentRef)
	if err != nil {
		return d, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return a.reject(log, d, tierID, settled), nil
	}

	ok, err = a.repo.ClaimSlot(ctx, models.AggregatePoolID, paymentRef)
	if err != nil || !ok {
		if relErr := a.repo.ReleaseSlot(ctx, tierID, paymentRef); relErr != nil {
			log.Error("failed to release tier claim", sl.Err(relErr))
			return d, fmt.Errorf("%s: release %s: %w", op, tierID, errors.Join(err, relErr))
		}
		if err != nil {
			return d, fmt.Errorf("%s: %w", op, err)
		}
		return a.reject(log, d, models.AggregatePoolID, settled), nil
	}

	d.State = Admitted
	metrics.SlotDecisions.WithLabelValues(tierID, string(d.State)).Inc()
	a.invalidate(ctx)
	log.Info("slot admitted")
	return d, nil
}

func (a *Allocator) reject(log *slog.Logger, d Decision, fullPool string, settled bool) Decision {
	d.FullPool = fullPool
	d.State = RejectedSoldOut
	if settled {
		d.State = OversoldCompensated
		log.Warn("pool full after settlement, payment must be refunded", slog.String("pool", fullPool))
	} else {
		log.Info("pool full", slog.String("pool", fullPool))
	}
	metrics.SlotDecisions.WithLabelValues(d.TierID, string(d.State)).Inc()
	return d
}

// Availability возвращает занятость пулов для интерфейса. Общий пул идёт последним.
// Значение может отставать на TTL кэша и не используется для допуска.
func (a *Allocator) Availability(ctx context.Context) ([]models.SlotAvailability, error) {
	const op = "slots.Availability"
	log := a.log.With(slog.String("op", op))

	if a.cache != nil {
		var cached []models.SlotAvailability
		found, err := a.cache.Get(ctx, AvailabilityKey, &cached)
		if err != nil {
			log.Warn("cache read failed", sl.Err(err))
		} else if found {
			return cached, nil
		}
	}

	pools, err := a.repo.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	byID := make(map[string]models.SlotPool, len(pools))
	for _, p := range pools {
		byID[p.TierID] = p
	}

	out := make([]models.SlotAvailability, 0, len(pools))
	for _, deal := range a.catalog.LifetimeDeals() {
		p, ok := byID[deal.PoolID()]
		if !ok {
			continue
		}
		out = append(out, availability(p, deal.Name))
	}
	if p, ok := byID[models.AggregatePoolID]; ok {
		out = append(out, availability(p, "Total"))
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, AvailabilityKey, out, a.ttl); err != nil {
			log.Warn("cache write failed", sl.Err(err))
		}
	}
	return out, nil
}

func availability(p models.SlotPool, name string) models.SlotAvailability {
	return models.SlotAvailability{
		TierID:    p.TierID,
		Name:      name,
		Sold:      p.Claimed,
		Max:       p.Capacity,
		Available: p.Available(),
	}
}

func (a *Allocator) invalidate(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, AvailabilityKey); err != nil {
		a.log.Warn("failed to invalidate availability cache", sl.Err(err))
	}
}
