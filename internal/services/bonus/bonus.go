// Package bonus начисляет ежедневный бонус за вход с надбавками за серию дней.
//
// Бонус за день начисляется записью BONUS с внешней ссылкой daily:<аккаунт>:<дата>,
// поэтому второй запрос за тот же день, в том числе параллельный, ничего не начисляет.
// Дни считаются по UTC.
package bonus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
)

// Ledger начисления и чтение аккаунтов.
type Ledger interface {
	Credit(ctx context.Context, req ledger.CreditRequest) (int64, error)
	Account(ctx context.Context, accountID string) (*models.Account, error)
}

// Notifier публикация событий.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// Reward бонус за конкретный день серии.
type Reward struct {
	Credits   int64  `json:"credits"`
	Streak    int    `json:"streak"`
	Milestone string `json:"milestone,omitempty"`
}

// Milestone ближайшая надбавка за серию.
type Milestone struct {
	Days  int   `json:"days"`
	Bonus int64 `json:"bonus"`
}

// Status состояние ежедневного бонуса аккаунта.
type Status struct {
	CurrentStreak   int        `json:"current_streak"`
	CanClaim        bool       `json:"can_claim"`
	LastClaimedOn   string     `json:"last_claimed_on,omitempty"`
	Next            *Reward    `json:"next,omitempty"`
	StreakWillReset bool       `json:"streak_will_reset"`
	NextMilestone   *Milestone `json:"next_milestone,omitempty"`
}

// Claim итог начисления бонуса.
type Claim struct {
	Reward
	Balance       int64      `json:"balance"`
	NextMilestone *Milestone `json:"next_milestone,omitempty"`
}

// Service ежедневные бонусы.
type Service struct {
	ledger   Ledger
	notifier Notifier
	amounts  config.DailyBonus
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт сервис. Нулевой базовый бонус заменяется значениями по умолчанию.
func New(log *slog.Logger, l Ledger, notifier Notifier, amounts config.DailyBonus) *Service {
	if amounts.Base <= 0 {
		amounts = config.DailyBonus{Base: 1, Streak3: 2, Streak7: 5, Streak14: 10, Streak30: 20}
	}
	return &Service{
		ledger:   l,
		notifier: notifier,
		amounts:  amounts,
		now:      time.Now,
		log:      log,
	}
}

// Calculate возвращает бонус за день streak серии.
// Надбавки: каждый 30-й день, иначе каждый 14-й, иначе каждый 7-й, и однократно на 3-й день.
func (s *Service) Calculate(streak int) Reward {
	r := Reward{Credits: s.amounts.Base, Streak: streak}
	switch {
	case streak%30 == 0:
		r.Credits += s.amounts.Streak30
		r.Milestone = "30-day streak"
	case streak%14 == 0:
		r.Credits += s.amounts.Streak14
		r.Milestone = "14-day streak"
	case streak%7 == 0:
		r.Credits += s.amounts.Streak7
		r.Milestone = "7-day streak"
	case streak == 3:
		r.Credits += s.amounts.Streak3
		r.Milestone = "3-day streak"
	}
	return r
}

// NextMilestone ближайшая надбавка после дня streak.
func (s *Service) NextMilestone(streak int) *Milestone {
	switch {
	case streak < 3:
		return &Milestone{Days: 3, Bonus: s.amounts.Streak3}
	case streak < 7:
		return &Milestone{Days: 7, Bonus: s.amounts.Streak7}
	case streak < 14:
		return &Milestone{Days: 14, Bonus: s.amounts.Streak14}
	case streak < 30:
		return &Milestone{Days: 30, Bonus: s.amounts.Streak30}
	}
	return &Milestone{Days: (streak/30 + 1) * 30, Bonus: s.amounts.Streak30}
}

func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// nextStreak день серии, который принесёт сегодняшний бонус, и получен ли он уже.
func nextStreak(acc *models.Account, today time.Time) (streak int, claimed bool) {
	if acc.LastBonusOn == nil {
		return 1, false
	}
	last := acc.LastBonusOn.UTC().Truncate(24 * time.Hour)
	switch {
	case last.Equal(today):
		return acc.LoginStreak, true
	case last.Equal(today.AddDate(0, 0, -1)):
		return acc.LoginStreak + 1, false
	}
	return 1, false
}

// Status возвращает состояние бонуса без начисления.
func (s *Service) Status(ctx context.Context, accountID string) (*Status, error) {
	const op = "bonus.Status"
	acc, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	streak, claimed := nextStreak(acc, s.today())
	st := &Status{
		CurrentStreak:   acc.LoginStreak,
		CanClaim:        !claimed,
		StreakWillReset: !claimed && streak == 1 && acc.LoginStreak > 0,
		NextMilestone:   s.NextMilestone(streak),
	}
	if acc.LastBonusOn != nil {
		st.LastClaimedOn = acc.LastBonusOn.Format(time.DateOnly)
	}
	if !claimed {
		r := s.Calculate(streak)
		st.Next = &r
	}
	return st, nil
}

// ClaimDaily начисляет сегодняшний бонус. Повтор в тот же день возвращает ErrBonusClaimed.
func (s *Service) ClaimDaily(ctx context.Context, accountID string) (*Claim, error) {
	const op = "bonus.ClaimDaily"
	log := s.log.With(slog.String("op", op), slog.String("account_id", accountID))

	acc, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	today := s.today()
	streak, claimed := nextStreak(acc, today)
	if claimed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBonusClaimed)
	}

	reward := s.Calculate(streak)
	description := fmt.Sprintf("daily bonus (day %d)", streak)
	if reward.Milestone != "" {
		description = fmt.Sprintf("daily bonus (%s)", reward.Milestone)
	}

	balance, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		AccountID:   accountID,
		Amount:      reward.Credits,
		Kind:        models.KindBonus,
		ExternalRef: DailyRef(accountID, today),
		Description: description,
		Effect:      models.CreditEffect{Streak: &models.DailyStreak{Days: streak, On: today}},
	})
	if errors.Is(err, models.ErrDuplicate) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBonusClaimed)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("daily bonus granted", slog.Int("streak", streak), slog.Int64("credits", reward.Credits))
	s.notifier.Notify(ctx, models.Event{
		Type:      models.EventCreditsGranted,
		AccountID: accountID,
		Email:     acc.Email,
		Credits:   reward.Credits,
		Balance:   balance,
		Reason:    description,
	})
	return &Claim{Reward: reward, Balance: balance, NextMilestone: s.NextMilestone(streak)}, nil
}

// DailyRef внешняя ссылка бонуса аккаунта за день.
func DailyRef(accountID string, day time.Time) string {
	return "daily:" + accountID + ":" + day.UTC().Format(time.DateOnly)
}
